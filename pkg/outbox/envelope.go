package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EnvelopeVersion is the payload layout written by this build.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event. System jobs leave it nil.
type ActorRef struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role,omitempty"`
}

// PayloadEnvelope is stored in outbox_events.payload and relayed to
// subscribers byte for byte.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var ErrInvalidEnvelope = errors.New("invalid outbox envelope")

// DecodeEnvelope parses a stored payload and rejects envelopes a subscriber
// could not route: missing event id, unknown version or no data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	switch {
	case env.EventID == "":
		return env, fmt.Errorf("%w: missing event id", ErrInvalidEnvelope)
	case env.Version < 1 || env.Version > EnvelopeVersion:
		return env, fmt.Errorf("%w: unsupported version %d", ErrInvalidEnvelope, env.Version)
	case len(env.Data) == 0 || string(env.Data) == "null":
		return env, fmt.Errorf("%w: missing data", ErrInvalidEnvelope)
	}
	return env, nil
}
