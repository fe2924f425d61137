// Package conversations derives per-counterpart conversation summaries from
// the message store. Summaries are recomputed on every call; the store is the
// only authority on read state, so nothing here is cached.
package conversations

import (
	"pulse/backend/internal/models"
)

// summaryWindow caps how many recent messages are grouped into summaries.
// A counterpart with unread messages whose latest message fell outside the
// window stays invisible until they send again; known approximation, not a
// bug to fix here.
const summaryWindow = 200

// Store is the slice of the message store the index reads.
type Store interface {
	RecentMessages(user string, limit int) ([]models.Message, error)
	UnreadCounts(user string) (map[string]int64, error)
	UsersByIDs(ids []string) ([]models.User, error)
}

// Summary describes one conversation from a user's point of view: the
// counterpart, the latest message either way, and whether anything from the
// counterpart is still unread.
type Summary struct {
	User        models.User    `json:"user"`
	LastMessage models.Message `json:"last_message"`
	Unread      bool           `json:"unread"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Summaries returns the user's conversations ordered by most recent
// activity. One recency-bounded fetch, grouped by counterpart, joined with
// one unread aggregate.
func (s *Service) Summaries(user string) ([]Summary, error) {
	recent, err := s.store.RecentMessages(user, summaryWindow)
	if err != nil {
		return nil, err
	}

	// Input is newest-first, so the first message seen per counterpart is
	// the latest one.
	latest := make(map[string]models.Message)
	order := make([]string, 0)
	for _, msg := range recent {
		counterpart := msg.SenderID
		if counterpart == user {
			counterpart = msg.ReceiverID
		}
		if _, seen := latest[counterpart]; !seen {
			latest[counterpart] = msg
			order = append(order, counterpart)
		}
	}
	if len(order) == 0 {
		return []Summary{}, nil
	}

	unread, err := s.store.UnreadCounts(user)
	if err != nil {
		return nil, err
	}

	profiles, err := s.store.UsersByIDs(order)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	summaries := make([]Summary, 0, len(order))
	for _, counterpart := range order {
		profile, ok := byID[counterpart]
		if !ok {
			// Counterpart row is gone; keep the conversation visible with
			// just the id.
			profile = models.User{ID: counterpart}
		}
		summaries = append(summaries, Summary{
			User:        profile,
			LastMessage: latest[counterpart],
			Unread:      unread[counterpart] > 0,
		})
	}
	return summaries, nil
}
