package chathub

import (
	"errors"
	"log"
	"strings"

	"pulse/backend/internal/models"
	"pulse/backend/internal/storage"
)

// Store is the slice of the message store the gateway writes through.
type Store interface {
	AppendMessage(sender, receiver, content string) (*models.Message, error)
	MarkThreadRead(reader, sender string) (int64, error)
	SetOnline(userID string) error
	SetOffline(userID string) error
}

// membership is a join or leave command for the run loop.
type membership struct {
	client Client
	room   RoomID
	leave  bool
}

// cast is one delivery command. Exactly one of room, user, conn or all is
// set; exclude skips the originating connection where the protocol says so
// (typing echoes, presence announcements).
type cast struct {
	room    RoomID
	user    string
	conn    string
	all     bool
	exclude string
	event   models.ServerEvent
}

// Gateway is the event-dispatch engine of the realtime layer. It owns the
// session registry and the room router and is the only thing that touches
// them: all mutations and broadcast enumerations funnel through the single
// Run goroutine, which serializes them and fixes per-room delivery order.
// Blocking work (persistence) never happens on that loop — it runs on the
// connection goroutine inside HandleEvent, before the resulting cast is
// enqueued, so a message is always retrievable from history by the time any
// client sees its live event.
//
// One Gateway is constructed at process start and handed to every handler
// that needs to push events; there is no package-level instance.
type Gateway struct {
	registry *SessionRegistry
	router   *RoomRouter
	store    Store

	RegisterCh   chan Client
	UnregisterCh chan Client

	memberCh chan membership
	castCh   chan cast
}

func NewGateway(store Store) *Gateway {
	return &Gateway{
		registry:     NewSessionRegistry(),
		router:       NewRoomRouter(),
		store:        store,
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		memberCh:     make(chan membership),
		castCh:       make(chan cast, 64),
	}
}

// Run is the dispatch loop. It must be started exactly once, before any
// connection registers.
func (g *Gateway) Run() {
	for {
		select {
		case c := <-g.RegisterCh:
			first := g.registry.Bind(c)
			log.Printf("Connection %s registered for user %s", c.ConnID(), c.UserID())
			if first {
				go g.setPresence(c.UserID(), true)
			}

		case c := <-g.UnregisterCh:
			g.drop(c.ConnID())

		case m := <-g.memberCh:
			if m.leave {
				g.router.Leave(m.client.ConnID(), m.room)
			} else {
				g.router.Join(m.client, m.room)
			}

		case cst := <-g.castCh:
			g.dispatch(cst)
		}
	}
}

// HandleEvent processes one inbound event on behalf of an authenticated
// connection. It runs on that connection's read goroutine: persistence may
// block here without stalling dispatch for anyone else, and a failure only
// ever reaches the originating connection.
func (g *Gateway) HandleEvent(c Client, ev models.ClientEvent) {
	counterpart := strings.TrimSpace(ev.CounterpartID)

	switch ev.Event {
	case models.EventJoinConversation:
		if counterpart == "" {
			return
		}
		g.memberCh <- membership{client: c, room: CanonicalRoom(c.UserID(), counterpart)}

	case models.EventLeaveConversation:
		if counterpart == "" {
			return
		}
		g.memberCh <- membership{client: c, room: CanonicalRoom(c.UserID(), counterpart), leave: true}

	case models.EventSendMessage:
		if counterpart == "" {
			g.castCh <- cast{conn: c.ConnID(), event: errorEvent("receiver is required")}
			return
		}
		msg, err := g.store.AppendMessage(c.UserID(), counterpart, ev.Content)
		if err != nil {
			reason := "failed to send message"
			if errors.Is(err, storage.ErrEmptyContent) {
				reason = err.Error()
			} else {
				log.Printf("ERROR: send-message from %s failed: %v", c.UserID(), err)
			}
			g.castCh <- cast{conn: c.ConnID(), event: errorEvent(reason)}
			return
		}
		g.PublishMessage(msg)

	case models.EventTypingStart, models.EventTypingStop:
		if counterpart == "" {
			return
		}
		g.castCh <- cast{
			room:    CanonicalRoom(c.UserID(), counterpart),
			exclude: c.ConnID(),
			event: models.ServerEvent{
				Event: models.EventUserTyping,
				Data: models.TypingPayload{
					UserID: c.UserID(),
					Typing: ev.Event == models.EventTypingStart,
				},
			},
		}

	case models.EventMarkRead:
		if counterpart == "" {
			return
		}
		if _, err := g.store.MarkThreadRead(c.UserID(), counterpart); err != nil {
			log.Printf("ERROR: mark-read by %s failed: %v", c.UserID(), err)
			g.castCh <- cast{conn: c.ConnID(), event: errorEvent("failed to mark messages read")}
			return
		}
		g.PublishRead(c.UserID(), counterpart)

	case models.EventUserOnline:
		g.castCh <- cast{
			all:     true,
			exclude: c.ConnID(),
			event: models.ServerEvent{
				Event: models.EventUserStatus,
				Data:  models.StatusPayload{UserID: c.UserID(), Online: true},
			},
		}

	default:
		log.Printf("Ignoring unknown event %q from user %s", ev.Event, c.UserID())
	}
}

// PublishMessage fans a freshly persisted message out: the full row to the
// canonical room, and a notification to every connection of the receiver so
// badges update even while they are viewing another thread. Shared by the
// websocket path and the REST send handler.
func (g *Gateway) PublishMessage(msg *models.Message) {
	g.castCh <- cast{
		room:  CanonicalRoom(msg.SenderID, msg.ReceiverID),
		event: models.ServerEvent{Event: models.EventNewMessage, Data: *msg},
	}
	g.castCh <- cast{
		user: msg.ReceiverID,
		event: models.ServerEvent{
			Event: models.EventMessageNotification,
			Data:  models.NotificationPayload{SenderID: msg.SenderID, Message: *msg},
		},
	}
}

// PublishRead announces a read receipt to the canonical room.
func (g *Gateway) PublishRead(reader, sender string) {
	g.castCh <- cast{
		room: CanonicalRoom(reader, sender),
		event: models.ServerEvent{
			Event: models.EventMessagesRead,
			Data:  models.ReadPayload{ReaderID: reader, SenderID: sender},
		},
	}
}

// drop tears one connection down: implicit leave from every room, unbind,
// and the offline announcement when it was the user's last. Safe to call
// twice; the second call finds nothing to do.
func (g *Gateway) drop(connID string) {
	c, exists := g.registry.conns[connID]
	userID, last, ok := g.registry.Unbind(connID)
	if !ok {
		return
	}
	g.router.Drop(connID)
	if exists {
		// Stops the write pump; the read pump notices the closed socket on
		// its own.
		close(c.GetSendChannel())
	}
	log.Printf("Connection %s closed for user %s", connID, userID)

	if last {
		g.dispatch(cast{
			all: true,
			event: models.ServerEvent{
				Event: models.EventUserStatus,
				Data:  models.StatusPayload{UserID: userID, Online: false},
			},
		})
		go g.setPresence(userID, false)
	}
}

// dispatch resolves a cast's targets and delivers to each of them.
// Broadcasting to a room nobody is joined to is a no-op.
func (g *Gateway) dispatch(cst cast) {
	var targets []Client
	switch {
	case cst.all:
		targets = g.registry.All()
	case cst.room != "":
		targets = g.router.Members(cst.room)
	case cst.user != "":
		targets = g.registry.ConnectionsOf(cst.user)
	case cst.conn != "":
		if c, ok := g.conn(cst.conn); ok {
			targets = []Client{c}
		}
	}

	for _, c := range targets {
		if c.ConnID() == cst.exclude {
			continue
		}
		g.deliver(c, cst.event)
	}
}

// deliver is best-effort at-most-once. A connection whose send buffer is
// full is not worth waiting for: it gets evicted and reconciles through a
// fresh history fetch when it reconnects.
//
// The registry check is load-bearing: dispatch walks a snapshot, and an
// eviction earlier in the walk can cascade (drop announces the offline edge
// with a nested dispatch) and tear down a connection still pending in the
// snapshot. Its send channel is closed by then; sending would panic the run
// loop. Drops are serialized on this goroutine, so absence from the registry
// is exact.
func (g *Gateway) deliver(c Client, ev models.ServerEvent) {
	if _, live := g.registry.conns[c.ConnID()]; !live {
		return
	}
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("Evicting slow connection %s (user %s)", c.ConnID(), c.UserID())
		g.drop(c.ConnID())
	}
}

func (g *Gateway) conn(connID string) (Client, bool) {
	c, ok := g.registry.conns[connID]
	return c, ok
}

// setPresence mirrors the online edge into the presence store, off the
// dispatch loop. Best-effort: presence reads fall back to "offline".
func (g *Gateway) setPresence(userID string, online bool) {
	var err error
	if online {
		err = g.store.SetOnline(userID)
	} else {
		err = g.store.SetOffline(userID)
	}
	if err != nil {
		log.Printf("WARNING: presence update for %s failed: %v", userID, err)
	}
}

func errorEvent(message string) models.ServerEvent {
	return models.ServerEvent{
		Event: models.EventError,
		Data:  models.ErrorPayload{Message: message},
	}
}
