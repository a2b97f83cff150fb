package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is stamped on envelopes written by this build.
const SchemaVersion = 1

// Actor kinds recorded on events.
const (
	ActorKindSystem    = "system"
	ActorKindCollector = "collector"
	ActorKindCrew      = "crew"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	ActorID string `json:"actorId"`
	Kind    string `json:"kind,omitempty"`
}

// PayloadEnvelope wraps every event payload stored in outbox_events.payload.
// EventID equals the outbox row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes without data or
// from a newer schema than this build understands.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > SchemaVersion {
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, fmt.Errorf("envelope %s has no data", env.EventID)
	}
	return env, nil
}
