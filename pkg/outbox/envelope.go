package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
)

// ActorRef identifies who produced the event. UserID is empty for system actors.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Role   string     `json:"role,omitempty"`
}

func NewActorRef(userID uuid.UUID, role enums.Role) *ActorRef {
	ref := &ActorRef{Role: string(role)}
	if userID != uuid.Nil {
		id := userID
		ref.UserID = &id
	}
	return ref
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and delivered
// verbatim to the sink. Type and AggregateID duplicate the row columns so
// consumers can route without reading message attributes.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"eventId"`
	Type        enums.OutboxEventType `json:"type"`
	AggregateID uuid.UUID             `json:"aggregateId"`
	OccurredAt  time.Time             `json:"occurredAt"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}
