package chathub_test

import (
	"fmt"
	"sync/atomic"

	"pulse/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the chathub.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) AppendMessage(sender, receiver, content string) (*models.Message, error) {
	args := m.Called(sender, receiver, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStore) MarkThreadRead(reader, sender string) (int64, error) {
	args := m.Called(reader, sender)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SetOnline(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStore) SetOffline(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

var connSeq atomic.Int64

// mockClient is a test double for the chathub.Client interface with a
// buffered send channel so deliveries never block the dispatch loop.
type mockClient struct {
	connID string
	userID string
	send   chan models.ServerEvent
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		connID: fmt.Sprintf("conn-%d", connSeq.Add(1)),
		userID: userID,
		send:   make(chan models.ServerEvent, 16),
	}
}

// newSlowClient's send channel has no buffer and no reader, so any delivery
// attempt trips the gateway's eviction path.
func newSlowClient(userID string) *mockClient {
	return &mockClient{
		connID: fmt.Sprintf("conn-%d", connSeq.Add(1)),
		userID: userID,
		send:   make(chan models.ServerEvent),
	}
}

func (c *mockClient) ConnID() string                            { return c.connID }
func (c *mockClient) UserID() string                            { return c.userID }
func (c *mockClient) GetSendChannel() chan<- models.ServerEvent { return c.send }
func (c *mockClient) Run()                                      {}

// drain empties the send channel, returning everything delivered so far.
func (c *mockClient) drain() []models.ServerEvent {
	var events []models.ServerEvent
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []models.ServerEvent, t models.EventType) []models.ServerEvent {
	var out []models.ServerEvent
	for _, ev := range events {
		if ev.Event == t {
			out = append(out, ev)
		}
	}
	return out
}
