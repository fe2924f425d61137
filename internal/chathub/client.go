package chathub

import "pulse/backend/internal/models"

// Client is one live, authenticated connection. A user may hold any number
// of them at once (phone, laptop, second tab); each is owned by exactly one
// user for its whole lifetime and gets a fresh connection id, so
// re-authentication always means a new Client.
type Client interface {
	// ConnID returns the process-local unique id of this connection.
	ConnID() string
	// UserID returns the authenticated owner of the connection.
	UserID() string

	// GetSendChannel returns the channel the gateway writes outbound events
	// to. The gateway owns the channel's lifecycle and closes it when the
	// connection is dropped.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
}
