package workorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/internal/timeline"
	dbpkg "github.com/angelmondragon/scrapfield-backend/pkg/db"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/lock"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order lifecycle: creation, general updates, collector assignment and timeline reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.WorkOrder, error)
	UpdateOrder(ctx context.Context, actorID string, orderID uuid.UUID, input UpdateOrderInput) (*models.WorkOrder, error)
	AssignOrder(ctx context.Context, actorID string, orderID uuid.UUID, input AssignOrderInput) (*models.WorkOrder, error)
	GetOrderTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.WorkOrder, error)
}

// ServiceParams wires the lifecycle service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Timeline   timeline.Service
	Outbox     outbox.Emitter
	Locker     lock.Locker
	Metrics    *metrics.WorkOrderMetrics
	Logger     *logger.Logger
	// Location decides which calendar day an order number belongs to.
	Location *time.Location
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	timeline timeline.Service
	outbox   outbox.Emitter
	locker   lock.Locker
	metrics  *metrics.WorkOrderMetrics
	logg     *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService builds the lifecycle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Timeline == nil {
		return nil, fmt.Errorf("timeline service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		tx:       params.Tx,
		timeline: params.Timeline,
		outbox:   params.Outbox,
		locker:   params.Locker,
		metrics:  params.Metrics,
		logg:     logg,
		loc:      loc,
		now:      now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.WorkOrder, error) {
	if input.OrganizationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerPhone) == "" || strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name, phone and address are required")
	}

	now := s.now()
	localDay := now.In(s.loc)
	dayStart, dayEnd := DayBounds(localDay)

	unlock, err := s.locker.Acquire(ctx, orderNumberLockKey(input.OrganizationID, localDay))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not reserve order number")
	}
	defer unlock()

	var order *models.WorkOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountCreatedBetween(ctx, input.OrganizationID, dayStart.UTC(), dayEnd.UTC())
		if err != nil {
			return fmt.Errorf("count orders for day: %w", err)
		}

		order = newOrder(input, FormatOrderNumber(localDay, count+1), now.UTC())
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.Entry{
			Order:       order,
			To:          enums.OrderStatusPending,
			Notes:       fmt.Sprintf("Order %s created", order.OrderNumber),
			PerformedBy: models.PerformedBySystem,
			At:          &order.CreatedAt,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWorkOrderCreated,
			AggregateType: enums.AggregateWorkOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ActorID: models.PerformedBySystem, Kind: outbox.ActorKindSystem},
			OccurredAt:    order.CreatedAt,
			Data: payloads.WorkOrderCreatedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				OrganizationID: order.OrganizationID,
				Status:         order.OrderStatus,
				PickupTime:     order.PickupTime,
			},
		})
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already issued")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create work order")
	}

	s.metrics.IncNumbersIssued()
	s.metrics.ObserveTransition("", string(enums.OrderStatusPending), metrics.SourceLifecycle)
	s.logg.Info(s.orderCtx(ctx, order), "work_order.created")
	return order, nil
}

func newOrder(input CreateOrderInput, number string, createdAt time.Time) *models.WorkOrder {
	order := &models.WorkOrder{
		ID:             uuid.New(),
		OrderNumber:    number,
		OrganizationID: input.OrganizationID,
		CustomerID:     input.CustomerID,
		LeadID:         input.LeadID,
		YardID:         input.YardID,
		CrewID:         input.CrewID,
		CustomerName:   strings.TrimSpace(input.CustomerName),
		CustomerPhone:  strings.TrimSpace(input.CustomerPhone),
		CustomerEmail:  input.CustomerEmail,
		Address:        strings.TrimSpace(input.Address),
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		VehicleDetails: input.VehicleDetails,
		OrderStatus:    enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		QuotedPrice:    input.QuotedPrice,
		Notes:          input.Notes,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if len(input.Photos) > 0 {
		order.Photos = pq.StringArray(input.Photos)
	}
	if input.PickupTime != nil {
		pickup := input.PickupTime.UTC()
		order.PickupTime = &pickup
	}
	return order
}

func (s *service) UpdateOrder(ctx context.Context, actorID string, orderID uuid.UUID, input UpdateOrderInput) (*models.WorkOrder, error) {
	if len(input.RelationKeys) > 0 {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id":      orderID.String(),
			"stripped_keys": input.RelationKeys,
		}), "work_order.update.relation_keys_stripped")
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if input.OrderStatus != nil && !input.OrderStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var (
		order *models.WorkOrder
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Lookup(err, "work order not found", "load work order")
		}
		from = order.OrderStatus

		input.apply(order)

		changed := input.OrderStatus != nil && *input.OrderStatus != from
		if changed {
			to := *input.OrderStatus
			if !from.CanTransitionTo(to) {
				return invalidTransition(from, to)
			}
			order.OrderStatus = to
		}
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if !changed {
			return nil
		}

		notes := fmt.Sprintf("Status updated to %s", order.OrderStatus)
		if input.StatusNote != nil && strings.TrimSpace(*input.StatusNote) != "" {
			notes = strings.TrimSpace(*input.StatusNote)
		}
		_, err = s.timeline.Record(ctx, tx, timeline.Entry{
			Order:       order,
			From:        from,
			To:          order.OrderStatus,
			Notes:       notes,
			PerformedBy: actorID,
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Classify(err, "update work order")
	}

	if from != order.OrderStatus {
		s.metrics.ObserveTransition(string(from), string(order.OrderStatus), metrics.SourceLifecycle)
	}
	s.logg.Info(s.orderCtx(ctx, order), "work_order.updated")
	return order, nil
}

// AssignOrder hands the order to a collector and forces ASSIGNED from any current status.
func (s *service) AssignOrder(ctx context.Context, actorID string, orderID uuid.UUID, input AssignOrderInput) (*models.WorkOrder, error) {
	if input.CollectorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collector id is required")
	}

	var (
		order *models.WorkOrder
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Lookup(err, "work order not found", "load work order")
		}
		from = order.OrderStatus

		collectorID := input.CollectorID
		order.AssignedCollectorID = &collectorID
		order.OrderStatus = enums.OrderStatusAssigned
		if err := repo.Save(ctx, order); err != nil {
			return err
		}

		notes := fmt.Sprintf("Order assigned to collector %s", collectorID)
		if input.Notes != nil && strings.TrimSpace(*input.Notes) != "" {
			notes = strings.TrimSpace(*input.Notes)
		}
		_, err = s.timeline.Record(ctx, tx, timeline.Entry{
			Order:       order,
			From:        from,
			To:          enums.OrderStatusAssigned,
			Notes:       notes,
			PerformedBy: actorID,
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Classify(err, "assign work order")
	}

	if from != order.OrderStatus {
		s.metrics.ObserveTransition(string(from), string(order.OrderStatus), metrics.SourceLifecycle)
	}
	logCtx := s.logg.WithField(s.orderCtx(ctx, order), "collector_id", input.CollectorID.String())
	s.logg.Info(logCtx, "work_order.assigned")
	return order, nil
}

func (s *service) GetOrderTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	entries, err := s.timeline.List(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list timeline")
	}
	return entries, nil
}

// GetOrder returns the hydrated aggregate: order, assignments and timeline.
func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.WorkOrder, error) {
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "work order not found", "get work order")
	}
	return order, nil
}

func (s *service) orderCtx(ctx context.Context, order *models.WorkOrder) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"order_status": order.OrderStatus,
	})
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": from.AllowedTransitions(),
		})
}

