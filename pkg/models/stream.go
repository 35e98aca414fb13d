package models

import "encoding/json"

// Stream message types exchanged over the live risk channel.
const (
	MessageTypeRiskUpdate     = "riskUpdate"
	MessageTypeError          = "error"
	MessageTypeRequestUpdate  = "requestUpdate"
	MessageTypeUpdateInterval = "updateInterval"
)

// ClientMessage is a message received from a connected client.
type ClientMessage struct {
	Type     string `json:"type"`
	Interval int64  `json:"interval,omitempty"` // milliseconds, updateInterval only
}

// ServerMessage is a message pushed to a connected client.
type ServerMessage struct {
	Type    string       `json:"type"`
	Data    *RiskMetrics `json:"data,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// RiskUpdateMessage wraps freshly computed metrics for push.
func RiskUpdateMessage(m *RiskMetrics) ServerMessage {
	return ServerMessage{Type: MessageTypeRiskUpdate, Data: m}
}

// ErrorMessage wraps a typed failure for push to the originating client.
func ErrorMessage(code, message string) ServerMessage {
	return ServerMessage{Type: MessageTypeError, Code: code, Message: message}
}

// Encode serializes the message for the wire.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
