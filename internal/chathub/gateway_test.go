package chathub_test

import (
	"testing"
	"time"

	"pulse/backend/internal/chathub"
	"pulse/backend/internal/models"
	"pulse/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// settle gives the dispatch loop time to process channel commands.
const settle = 100 * time.Millisecond

func newTestGateway(store *MockStore) *chathub.Gateway {
	store.On("SetOnline", mock.AnythingOfType("string")).Return(nil).Maybe()
	store.On("SetOffline", mock.AnythingOfType("string")).Return(nil).Maybe()
	g := chathub.NewGateway(store)
	go g.Run()
	return g
}

func register(g *chathub.Gateway, c *mockClient) {
	g.RegisterCh <- c
}

func join(g *chathub.Gateway, c *mockClient, counterpart string) {
	g.HandleEvent(c, models.ClientEvent{Event: models.EventJoinConversation, CounterpartID: counterpart})
}

func TestGateway_SendMessage_RoomAndNotification(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	sender := newMockClient("user_a")
	receiver := newMockClient("user_b")
	register(g, sender)
	register(g, receiver)
	join(g, sender, "user_b")
	join(g, receiver, "user_a")

	stored := &models.Message{ID: 1, SenderID: "user_a", ReceiverID: "user_b", Content: "hello"}
	store.On("AppendMessage", "user_a", "user_b", "hello").Return(stored, nil)

	g.HandleEvent(sender, models.ClientEvent{Event: models.EventSendMessage, CounterpartID: "user_b", Content: "hello"})
	time.Sleep(settle)

	// The joined receiver sees the room event and the personal-channel
	// notification; the message is already persisted by the time either is
	// delivered.
	got := receiver.drain()
	newMsgs := eventsOfType(got, models.EventNewMessage)
	if assert.Len(t, newMsgs, 1) {
		msg := newMsgs[0].Data.(models.Message)
		assert.Equal(t, "hello", msg.Content)
		assert.False(t, msg.Read)
	}
	notifs := eventsOfType(got, models.EventMessageNotification)
	if assert.Len(t, notifs, 1) {
		payload := notifs[0].Data.(models.NotificationPayload)
		assert.Equal(t, "user_a", payload.SenderID)
	}

	// The sender is joined to the room too and sees their own message echo.
	assert.Len(t, eventsOfType(sender.drain(), models.EventNewMessage), 1)
	store.AssertCalled(t, "AppendMessage", "user_a", "user_b", "hello")
}

func TestGateway_SendMessage_NotJoinedReceiverGetsOnlyNotification(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	sender := newMockClient("user_a")
	receiver := newMockClient("user_b")
	register(g, sender)
	register(g, receiver)
	// Receiver never joins the room: viewing some other thread.

	stored := &models.Message{ID: 2, SenderID: "user_a", ReceiverID: "user_b", Content: "ping"}
	store.On("AppendMessage", "user_a", "user_b", "ping").Return(stored, nil)

	g.HandleEvent(sender, models.ClientEvent{Event: models.EventSendMessage, CounterpartID: "user_b", Content: "ping"})
	time.Sleep(settle)

	got := receiver.drain()
	assert.Empty(t, eventsOfType(got, models.EventNewMessage), "no room event without membership")
	assert.Len(t, eventsOfType(got, models.EventMessageNotification), 1)
}

func TestGateway_SendMessage_ValidationErrorReachesSenderOnly(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	sender := newMockClient("user_a")
	receiver := newMockClient("user_b")
	register(g, sender)
	register(g, receiver)
	join(g, receiver, "user_a")

	store.On("AppendMessage", "user_a", "user_b", "   ").Return(nil, storage.ErrEmptyContent)

	g.HandleEvent(sender, models.ClientEvent{Event: models.EventSendMessage, CounterpartID: "user_b", Content: "   "})
	time.Sleep(settle)

	senderEvents := sender.drain()
	if assert.Len(t, eventsOfType(senderEvents, models.EventError), 1) {
		payload := eventsOfType(senderEvents, models.EventError)[0].Data.(models.ErrorPayload)
		assert.Equal(t, storage.ErrEmptyContent.Error(), payload.Message)
	}
	assert.Empty(t, receiver.drain(), "nothing is broadcast on validation failure")
}

func TestGateway_Typing_NoSelfEcho(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	a := newMockClient("user_a")
	b := newMockClient("user_b")
	register(g, a)
	register(g, b)
	join(g, a, "user_b")
	join(g, b, "user_a")

	g.HandleEvent(a, models.ClientEvent{Event: models.EventTypingStart, CounterpartID: "user_b"})
	time.Sleep(settle)

	bTyping := eventsOfType(b.drain(), models.EventUserTyping)
	if assert.Len(t, bTyping, 1) {
		payload := bTyping[0].Data.(models.TypingPayload)
		assert.Equal(t, "user_a", payload.UserID)
		assert.True(t, payload.Typing)
	}
	assert.Empty(t, eventsOfType(a.drain(), models.EventUserTyping), "the originating connection gets no echo")

	g.HandleEvent(a, models.ClientEvent{Event: models.EventTypingStop, CounterpartID: "user_b"})
	time.Sleep(settle)

	stop := eventsOfType(b.drain(), models.EventUserTyping)
	if assert.Len(t, stop, 1) {
		assert.False(t, stop[0].Data.(models.TypingPayload).Typing)
	}
}

func TestGateway_MarkRead_BroadcastsReceipt(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	reader := newMockClient("user_b")
	sender := newMockClient("user_a")
	register(g, reader)
	register(g, sender)
	join(g, reader, "user_a")
	join(g, sender, "user_b")

	store.On("MarkThreadRead", "user_b", "user_a").Return(int64(3), nil)

	g.HandleEvent(reader, models.ClientEvent{Event: models.EventMarkRead, CounterpartID: "user_a"})
	time.Sleep(settle)

	receipts := eventsOfType(sender.drain(), models.EventMessagesRead)
	if assert.Len(t, receipts, 1) {
		payload := receipts[0].Data.(models.ReadPayload)
		assert.Equal(t, "user_b", payload.ReaderID)
		assert.Equal(t, "user_a", payload.SenderID)
	}
	store.AssertCalled(t, "MarkThreadRead", "user_b", "user_a")
}

func TestGateway_Notification_ReachesAllDevices(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	phone := newMockClient("user_a")
	laptop := newMockClient("user_a")
	sender := newMockClient("user_b")
	register(g, phone)
	register(g, laptop)
	register(g, sender)

	stored := &models.Message{ID: 3, SenderID: "user_b", ReceiverID: "user_a", Content: "hi"}
	store.On("AppendMessage", "user_b", "user_a", "hi").Return(stored, nil)

	g.HandleEvent(sender, models.ClientEvent{Event: models.EventSendMessage, CounterpartID: "user_a", Content: "hi"})
	time.Sleep(settle)

	assert.Len(t, eventsOfType(phone.drain(), models.EventMessageNotification), 1)
	assert.Len(t, eventsOfType(laptop.drain(), models.EventMessageNotification), 1)
}

func TestGateway_PublishRead_EmptyRoomIsNoOp(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	bystander := newMockClient("user_c")
	register(g, bystander)

	g.PublishRead("user_a", "user_b")
	time.Sleep(settle)

	assert.Empty(t, bystander.drain(), "broadcast to an empty room delivers nothing")
}

func TestGateway_OfflineOnlyAfterLastConnection(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	phone := newMockClient("user_a")
	laptop := newMockClient("user_a")
	watcher := newMockClient("user_b")
	register(g, phone)
	register(g, laptop)
	register(g, watcher)

	g.UnregisterCh <- phone
	time.Sleep(settle)
	assert.Empty(t, eventsOfType(watcher.drain(), models.EventUserStatus),
		"a device remains, no offline announcement yet")

	g.UnregisterCh <- laptop
	time.Sleep(settle)
	statuses := eventsOfType(watcher.drain(), models.EventUserStatus)
	if assert.Len(t, statuses, 1) {
		payload := statuses[0].Data.(models.StatusPayload)
		assert.Equal(t, "user_a", payload.UserID)
		assert.False(t, payload.Online)
	}
	store.AssertCalled(t, "SetOffline", "user_a")
}

// assertDropped verifies the gateway closed the connection's send channel.
func assertDropped(t *testing.T, c *mockClient) {
	t.Helper()
	select {
	case _, open := <-c.send:
		assert.False(t, open, "send channel of %s should be closed", c.connID)
	default:
		t.Errorf("connection %s was not dropped", c.connID)
	}
}

func TestGateway_SlowConnectionsEvictedDuringBroadcast(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	// Two connections that never read; their evictions cascade inside one
	// broadcast, since dropping the first announces its offline edge while
	// the second is still pending in the same delivery walk.
	slowA := newSlowClient("user_a")
	slowB := newSlowClient("user_b")
	healthy := newMockClient("user_c")
	register(g, slowA)
	register(g, slowB)
	register(g, healthy)

	g.HandleEvent(healthy, models.ClientEvent{Event: models.EventUserOnline})
	time.Sleep(settle)

	assertDropped(t, slowA)
	assertDropped(t, slowB)
	store.AssertCalled(t, "SetOffline", "user_a")
	store.AssertCalled(t, "SetOffline", "user_b")

	// Each eviction was the user's last connection, so the healthy
	// connection sees both offline edges.
	statuses := eventsOfType(healthy.drain(), models.EventUserStatus)
	if assert.Len(t, statuses, 2) {
		var users []string
		for _, ev := range statuses {
			payload := ev.Data.(models.StatusPayload)
			assert.False(t, payload.Online)
			users = append(users, payload.UserID)
		}
		assert.ElementsMatch(t, []string{"user_a", "user_b"}, users)
	}

	// The dispatch loop survived and keeps serving the connections left.
	late := newMockClient("user_d")
	register(g, late)
	g.HandleEvent(late, models.ClientEvent{Event: models.EventUserOnline})
	time.Sleep(settle)

	online := eventsOfType(healthy.drain(), models.EventUserStatus)
	if assert.Len(t, online, 1) {
		assert.Equal(t, "user_d", online[0].Data.(models.StatusPayload).UserID)
	}
}

func TestGateway_SendMessage_BlankReceiverRejected(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	sender := newMockClient("user_a")
	bystander := newMockClient("user_b")
	register(g, sender)
	register(g, bystander)

	g.HandleEvent(sender, models.ClientEvent{Event: models.EventSendMessage, Content: "hello"})
	time.Sleep(settle)

	senderEvents := eventsOfType(sender.drain(), models.EventError)
	if assert.Len(t, senderEvents, 1) {
		payload := senderEvents[0].Data.(models.ErrorPayload)
		assert.Equal(t, "receiver is required", payload.Message)
	}
	assert.Empty(t, bystander.drain())
	store.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateway_UserOnline_ExcludesSelf(t *testing.T) {
	store := new(MockStore)
	g := newTestGateway(store)

	a := newMockClient("user_a")
	b := newMockClient("user_b")
	register(g, a)
	register(g, b)

	g.HandleEvent(a, models.ClientEvent{Event: models.EventUserOnline})
	time.Sleep(settle)

	statuses := eventsOfType(b.drain(), models.EventUserStatus)
	if assert.Len(t, statuses, 1) {
		payload := statuses[0].Data.(models.StatusPayload)
		assert.Equal(t, "user_a", payload.UserID)
		assert.True(t, payload.Online)
	}
	assert.Empty(t, eventsOfType(a.drain(), models.EventUserStatus))
}
