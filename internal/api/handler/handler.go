package handler

import (
	"pulse/backend/internal/auth"
	"pulse/backend/internal/chathub"
	"pulse/backend/internal/conversations"
	"pulse/backend/internal/storage"
)

// Handler bundles the dependencies the HTTP surface needs: the gateway for
// pushing live events, the store for the shared persistence contract, and
// the derived-view and auth services.
type Handler struct {
	Hub           *chathub.Gateway
	Storage       *storage.Service
	Auth          *auth.Service
	Conversations *conversations.Service
}

func NewHandler(hub *chathub.Gateway, s *storage.Service, a *auth.Service, c *conversations.Service) *Handler {
	return &Handler{Hub: hub, Storage: s, Auth: a, Conversations: c}
}
