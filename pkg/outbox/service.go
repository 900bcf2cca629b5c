package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DomainEvent is a state change to publish once the surrounding transaction
// commits. Data is marshalled into the envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit stores events inside tx, so they commit or roll back with the state
// change that produced them. Events keep their argument order.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if len(events) == 0 {
		return nil
	}
	rows := make([]models.OutboxEvent, 0, len(events))
	for i, ev := range events {
		row, err := s.row(ev)
		if err != nil {
			return fmt.Errorf("outbox event %d (%s): %w", i, ev.EventType, err)
		}
		rows = append(rows, row)
	}
	if err := s.repo.InsertTx(tx, rows); err != nil {
		return fmt.Errorf("insert outbox events: %w", err)
	}
	for _, row := range rows {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"outbox_id":      row.ID.String(),
			"event_type":     row.EventType,
			"aggregate_type": row.AggregateType,
			"aggregate_id":   row.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

func (s *Service) row(ev DomainEvent) (models.OutboxEvent, error) {
	if ev.EventType == "" || ev.AggregateType == "" {
		return models.OutboxEvent{}, errors.New("event and aggregate type are required")
	}
	if ev.AggregateID == uuid.Nil {
		return models.OutboxEvent{}, errors.New("aggregate id is required")
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal data: %w", err)
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	version := ev.Version
	if version == 0 {
		version = 1
	}
	id, err := uuid.NewV7()
	if err != nil {
		return models.OutboxEvent{}, err
	}
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      ev.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     ev.EventType,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       payload,
	}, nil
}
