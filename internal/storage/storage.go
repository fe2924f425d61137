package storage

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"pulse/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrEmptyContent is returned by AppendMessage when the content is empty
// after trimming. Nothing is written in that case.
var ErrEmptyContent = errors.New("message content is empty")

// recentCap bounds how far back RecentMessages reaches when the caller
// passes limit <= 0. Conversation summaries deliberately accept this
// recency window: a counterpart whose latest message fell outside it is
// invisible until they send again.
const recentCap = 200

const (
	onlineSetKey  = "presence:online"
	lastSeenKeyNS = "presence:last_seen:"
)

// MessageStore is the durable message log plus the user rows and presence
// keys the conversation layer reads. Service implements it on PostgreSQL
// and Redis; tests substitute mocks.
type MessageStore interface {
	AppendMessage(sender, receiver, content string) (*models.Message, error)
	Thread(userA, userB string, limit int) ([]models.Message, error)
	MarkThreadRead(reader, sender string) (int64, error)
	RecentMessages(user string, limit int) ([]models.Message, error)
	UnreadCounts(user string) (map[string]int64, error)

	SaveUser(user *models.User) error
	ActiveUser(id string) (*models.User, error)
	UserByEmail(email string) (*models.User, error)
	UsersByIDs(ids []string) ([]models.User, error)

	SetOnline(userID string) error
	SetOffline(userID string) error
	OnlineUsers() ([]string, error)
	LastSeen(userID string) (time.Time, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// AppendMessage inserts one message with read=false and returns the stored
// row including the assigned id and timestamp.
func (s *Service) AppendMessage(sender, receiver, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg := models.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Read:       false,
	}
	if err := s.DB.Create(&msg).Error; err != nil {
		log.Printf("ERROR: Failed to append message from %s to %s: %v", sender, receiver, err)
		return nil, err
	}
	return &msg, nil
}

// Thread returns the full ordered history between two users, ascending by
// creation time with ties broken by id. A limit <= 0 caps at the most
// recent rows of the default window, still returned oldest first.
func (s *Service) Thread(userA, userB string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = recentCap
	}

	var msgs []models.Message
	err := s.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to load thread %s/%s: %v", userA, userB, err)
		return nil, err
	}

	// Query newest-first so the limit trims old history, then flip back to
	// thread order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkThreadRead flips read on every unread message sent by sender to
// reader. One statement, idempotent; returns the number of rows affected.
func (s *Service) MarkThreadRead(reader, sender string) (int64, error) {
	res := s.DB.Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read = ?", reader, sender, false).
		Update("read", true)
	if res.Error != nil {
		log.Printf("ERROR: Failed to mark thread read for %s from %s: %v", reader, sender, res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RecentMessages returns the newest messages touching user, newest first.
func (s *Service) RecentMessages(user string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = recentCap
	}

	var msgs []models.Message
	err := s.DB.
		Where("sender_id = ? OR receiver_id = ?", user, user).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to load recent messages for %s: %v", user, err)
		return nil, err
	}
	return msgs, nil
}

// UnreadCounts aggregates unread messages for user grouped by sender.
func (s *Service) UnreadCounts(user string) (map[string]int64, error) {
	var rows []struct {
		SenderID string
		Unread   int64
	}
	err := s.DB.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND read = ?", user, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		log.Printf("ERROR: Failed to count unread for %s: %v", user, err)
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Unread
	}
	return counts, nil
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// ActiveUser loads a user by id, returning nil without error when the row
// does not exist or the account has been deactivated.
func (s *Service) ActiveUser(id string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UserByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UsersByIDs(ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetOnline records the user in the online set. Called when the first live
// connection binds.
func (s *Service) SetOnline(userID string) error {
	return s.Redis.SAdd(s.Ctx, onlineSetKey, userID).Err()
}

// SetOffline removes the user from the online set and stamps last-seen.
// Called when the last live connection unbinds.
func (s *Service) SetOffline(userID string) error {
	if err := s.Redis.SRem(s.Ctx, onlineSetKey, userID).Err(); err != nil {
		return err
	}
	return s.Redis.Set(s.Ctx, lastSeenKeyNS+userID, time.Now().Unix(), 0).Err()
}

func (s *Service) OnlineUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, onlineSetKey).Result()
}

// LastSeen returns the recorded last-seen time, or the zero time when the
// user has never disconnected.
func (s *Service) LastSeen(userID string) (time.Time, error) {
	unix, err := s.Redis.Get(s.Ctx, lastSeenKeyNS+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

// IsOnline reports membership in the online set.
func (s *Service) IsOnline(userID string) (bool, error) {
	return s.Redis.SIsMember(s.Ctx, onlineSetKey, userID).Result()
}
