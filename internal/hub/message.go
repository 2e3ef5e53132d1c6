package hub

import (
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeOddsUpdated MessageType = "odds_updated"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeHeartbeat   MessageType = "heartbeat"
	MessageTypeError       MessageType = "error"
)

// ServerMessage is sent from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is sent from client to server
type ClientMessage struct {
	Type   MessageType `json:"type"`
	Sports []string    `json:"sports,omitempty"` // subscribe only; empty means every sport
}

// OddsUpdated is the payload pushed after every successful fetch
type OddsUpdated struct {
	Sport     string         `json:"sport"`
	Events    []models.Event `json:"events"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// ErrorMessage represents an error sent to client
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectionStats tracks one client's traffic
type ConnectionStats struct {
	ClientID         string    `json:"client_id"`
	ConnectedAt      time.Time `json:"connected_at"`
	MessagesSent     int64     `json:"messages_sent"`
	MessagesReceived int64     `json:"messages_received"`
}
