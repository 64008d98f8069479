package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
)

type dlqAdmin interface {
	List(ctx context.Context, reason enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID, force bool) error
}

type dlqCommand struct {
	list    bool
	reason  string
	requeue string
	force   bool
}

func (c dlqCommand) requested() bool {
	return c.list || c.requeue != ""
}

type dlqLine struct {
	EventID      uuid.UUID                  `json:"event_id"`
	EventType    enums.OutboxEventType      `json:"event_type"`
	AggregateID  uuid.UUID                  `json:"aggregate_id"`
	Reason       enums.OutboxDLQErrorReason `json:"reason"`
	AttemptCount int                        `json:"attempt_count"`
	Error        string                     `json:"error,omitempty"`
	FailedAt     string                     `json:"failed_at"`
}

// runDLQCommand serves the operator flags: list prints one JSON object per
// dead-lettered event, requeue gives one event a fresh attempt budget.
func runDLQCommand(ctx context.Context, admin dlqAdmin, cmd dlqCommand, out io.Writer) error {
	if cmd.requeue != "" {
		eventID, err := uuid.Parse(cmd.requeue)
		if err != nil {
			return fmt.Errorf("invalid -requeue event id: %w", err)
		}
		if err := admin.Requeue(ctx, eventID, cmd.force); err != nil {
			if errors.Is(err, outbox.ErrNothingToRequeue) {
				return fmt.Errorf("event %s is not dead-lettered or was already published", eventID)
			}
			return err
		}
		_, err = fmt.Fprintf(out, "requeued %s\n", eventID)
		return err
	}

	reason := enums.OutboxDLQErrorReason(cmd.reason)
	if reason != "" && !reason.IsValid() {
		return fmt.Errorf("unknown dlq reason %q", cmd.reason)
	}
	entries, err := admin.List(ctx, reason, 0)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, entry := range entries {
		line := dlqLine{
			EventID:      entry.EventID,
			EventType:    entry.EventType,
			AggregateID:  entry.AggregateID,
			Reason:       entry.ErrorReason,
			AttemptCount: entry.AttemptCount,
			FailedAt:     entry.FailedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if entry.ErrorMessage != nil {
			line.Error = *entry.ErrorMessage
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
