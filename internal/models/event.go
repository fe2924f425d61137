package models

// EventType names one realtime event on the wire. Inbound and outbound
// events share the namespace so a dispatch switch covers exactly the
// protocol surface.
type EventType string

// Inbound events (client to gateway).
const (
	EventJoinConversation  EventType = "join-conversation"
	EventLeaveConversation EventType = "leave-conversation"
	EventSendMessage       EventType = "send-message"
	EventTypingStart       EventType = "typing-start"
	EventTypingStop        EventType = "typing-stop"
	EventMarkRead          EventType = "mark-read"
	EventUserOnline        EventType = "user-online"
)

// Outbound events (gateway to client).
const (
	EventNewMessage          EventType = "new-message"
	EventMessageNotification EventType = "message-notification"
	EventUserTyping          EventType = "user-typing"
	EventMessagesRead        EventType = "messages-read"
	EventUserStatus          EventType = "user-status"
	EventError               EventType = "error"
)

// ClientEvent is the single decoded shape for everything a connection may
// send once authenticated. CounterpartID is the other participant of the
// conversation the event concerns (the receiver for send-message, the
// original sender for mark-read); Content is only set for send-message.
type ClientEvent struct {
	Event         EventType `json:"event"`
	CounterpartID string    `json:"counterpart_id,omitempty"`
	Content       string    `json:"content,omitempty"`
}

// ServerEvent is the envelope written to a connection: the event name plus
// one of the payload types below (or a Message for new-message).
type ServerEvent struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// NotificationPayload rides on message-notification, delivered to every
// connection of the receiver regardless of room membership.
type NotificationPayload struct {
	SenderID string  `json:"sender_id"`
	Message  Message `json:"message"`
}

// TypingPayload rides on user-typing. It is pure signal: never persisted,
// and a stale true is the receiving client's problem to time out.
type TypingPayload struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// ReadPayload rides on messages-read so an open sender UI can flip its
// delivery ticks.
type ReadPayload struct {
	ReaderID string `json:"reader_id"`
	SenderID string `json:"sender_id"`
}

// StatusPayload rides on user-status.
type StatusPayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// ErrorPayload rides on error events, sent to the originating connection
// only.
type ErrorPayload struct {
	Message string `json:"message"`
}
