package stream

import (
	"encoding/json"
	"time"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

// ParseClientMessage decodes and validates one inbound client message. Pure
// function: transport-independent and testable without a live socket.
func ParseClientMessage(raw []byte) (*models.ClientMessage, error) {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, apperrors.InvalidInput("malformed message: not valid JSON")
	}
	switch msg.Type {
	case models.MessageTypeRequestUpdate:
		return &msg, nil
	case models.MessageTypeUpdateInterval:
		if msg.Interval <= 0 {
			return nil, apperrors.InvalidParameter("updateInterval requires a positive interval in milliseconds")
		}
		return &msg, nil
	case "":
		return nil, apperrors.InvalidInput("message type is required")
	default:
		return nil, apperrors.InvalidInput("unknown message type %q", msg.Type)
	}
}

// ValidateInterval enforces the minimum push interval floor.
func ValidateInterval(interval, floor time.Duration) error {
	if interval < floor {
		return apperrors.InvalidParameter(
			"update interval %s is below the minimum of %s", interval, floor)
	}
	return nil
}
