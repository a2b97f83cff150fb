package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
)

// Entry describes a status an order entered. From is empty on creation; when
// From equals To only the audit row is written.
type Entry struct {
	Order       *models.WorkOrder
	From        enums.OrderStatus
	To          enums.OrderStatus
	Notes       string
	PerformedBy string
	At          *time.Time
	Latitude    *float64
	Longitude   *float64
}

// Service is the single write path for order timeline rows.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.TimelineEntry, error)
	List(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
}

type service struct {
	repo   Repository
	outbox outbox.Emitter
	now    func() time.Time
}

// NewService builds the timeline service. now defaults to time.Now.
func NewService(repo Repository, emitter outbox.Emitter, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("timeline repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, outbox: emitter, now: now}, nil
}

// Record appends the audit row and, for real transitions, queues a status_changed event.
// Callers pass the transaction that carries the order mutation.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.TimelineEntry, error) {
	if entry.Order == nil {
		return nil, fmt.Errorf("timeline entry requires an order")
	}
	if !entry.To.IsValid() {
		return nil, fmt.Errorf("invalid timeline status %q", entry.To)
	}
	performedBy := entry.PerformedBy
	if performedBy == "" {
		performedBy = models.PerformedBySystem
	}
	createdAt := s.now().UTC()
	if entry.At != nil && !entry.At.IsZero() {
		createdAt = entry.At.UTC()
	}

	row := &models.TimelineEntry{
		OrderID:     entry.Order.ID,
		Status:      entry.To,
		Notes:       entry.Notes,
		PerformedBy: performedBy,
		Latitude:    entry.Latitude,
		Longitude:   entry.Longitude,
		CreatedAt:   createdAt,
	}
	if err := s.repo.WithTx(tx).Append(ctx, row); err != nil {
		return nil, fmt.Errorf("append timeline entry: %w", err)
	}

	if entry.From == "" || entry.From == entry.To {
		return row, nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWorkOrderStatusChanged,
		AggregateType: enums.AggregateWorkOrder,
		AggregateID:   entry.Order.ID,
		Actor:         &outbox.ActorRef{ActorID: performedBy},
		OccurredAt:    createdAt,
		Data: payloads.WorkOrderStatusChangedEvent{
			OrderID:        entry.Order.ID,
			OrderNumber:    entry.Order.OrderNumber,
			OrganizationID: entry.Order.OrganizationID,
			From:           entry.From,
			To:             entry.To,
			PerformedBy:    performedBy,
			Notes:          entry.Notes,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("emit status change: %w", err)
	}
	return row, nil
}

func (s *service) List(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
