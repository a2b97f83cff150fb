package assignments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/scrapfield-backend/internal/refcache"
	"github.com/angelmondragon/scrapfield-backend/internal/timeline"
	"github.com/angelmondragon/scrapfield-backend/internal/workorders"
	"github.com/angelmondragon/scrapfield-backend/pkg/db/models"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReferenceResolver supplies collector and crew display data.
type ReferenceResolver interface {
	Collector(ctx context.Context, id uuid.UUID) (*refcache.CollectorRef, error)
	Crew(ctx context.Context, id uuid.UUID) (*refcache.CrewRef, error)
}

// Service coordinates the start/complete lifecycle of assignments and the
// completion cascade onto the parent order.
type Service interface {
	StartAssignment(ctx context.Context, input ActorInput) (*Result, error)
	CompleteAssignment(ctx context.Context, input CompleteInput) (*Result, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (*AssignmentView, error)
	ListCollectorAssignments(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]AssignmentView, error)
	ListCrewAssignments(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]AssignmentView, error)
}

// ServiceParams wires the assignment coordinator.
type ServiceParams struct {
	Repository Repository
	Orders     workorders.Repository
	Tx         txRunner
	Timeline   timeline.Service
	Outbox     outbox.Emitter
	References ReferenceResolver
	Metrics    *metrics.WorkOrderMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo     Repository
	orders   workorders.Repository
	tx       txRunner
	timeline timeline.Service
	outbox   outbox.Emitter
	refs     ReferenceResolver
	metrics  *metrics.WorkOrderMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the assignment coordinator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("assignment repository required")
	}
	if params.Orders == nil {
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
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		orders:   params.Orders,
		tx:       params.Tx,
		timeline: params.Timeline,
		outbox:   params.Outbox,
		refs:     params.References,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) StartAssignment(ctx context.Context, input ActorInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		assignment *models.Assignment
		order      *models.WorkOrder
		from       enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		assignment, order, err = s.lockForActor(ctx, tx, input)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusPending {
			return assignmentTransitionError(assignment.Status, enums.AssignmentStatusInProgress)
		}
		if order.OrderStatus.IsTerminal() {
			return orderClosedError(order)
		}

		now := s.now().UTC()
		assignment.Status = enums.AssignmentStatusInProgress
		assignment.StartTime = &now
		if err := s.repo.WithTx(tx).Save(ctx, assignment); err != nil {
			return err
		}

		from = order.OrderStatus
		if from != enums.OrderStatusInProgress {
			order.OrderStatus = enums.OrderStatusInProgress
			if err := s.orders.WithTx(tx).Save(ctx, order); err != nil {
				return err
			}
			if _, err := s.timeline.Record(ctx, tx, timeline.Entry{
				Order:       order,
				From:        from,
				To:          enums.OrderStatusInProgress,
				Notes:       "Collection started by " + input.actorKind(),
				PerformedBy: input.actorID(),
				At:          &now,
			}); err != nil {
				return err
			}
		}

		return s.emitAssignment(ctx, tx, enums.EventAssignmentStarted, assignment, false, input)
	})
	if err != nil {
		return nil, pkgerrors.Classify(err, "start assignment")
	}

	if from != order.OrderStatus {
		s.metrics.ObserveTransition(string(from), string(order.OrderStatus), metrics.SourceAssignment)
	}
	s.logg.Info(s.assignmentCtx(ctx, assignment, order), "assignment.started")
	return s.result(ctx, assignment, order, false), nil
}

func (s *service) CompleteAssignment(ctx context.Context, input CompleteInput) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		assignment     *models.Assignment
		order          *models.WorkOrder
		from           enums.OrderStatus
		orderCompleted bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		assignment, order, err = s.lockForActor(ctx, tx, input.ActorInput)
		if err != nil {
			return err
		}
		if assignment.Status == enums.AssignmentStatusCompleted {
			return assignmentTransitionError(assignment.Status, enums.AssignmentStatusCompleted)
		}
		if order.OrderStatus == enums.OrderStatusCancelled {
			return orderClosedError(order)
		}

		now := s.now().UTC()
		assignment.Status = enums.AssignmentStatusCompleted
		assignment.EndTime = &now
		assignment.CompletedAt = &now
		assignment.CompletionNotes = trimmedOrNil(input.CompletionNotes)
		if len(input.CompletionPhotos) > 0 {
			assignment.CompletionPhotos = pq.StringArray(input.CompletionPhotos)
		}
		repo := s.repo.WithTx(tx)
		if err := repo.Save(ctx, assignment); err != nil {
			return err
		}

		// siblings are re-read under the order row lock
		siblings, err := repo.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		allCompleted := true
		for _, sibling := range siblings {
			if sibling.ID == assignment.ID {
				continue
			}
			if sibling.Status != enums.AssignmentStatusCompleted {
				allCompleted = false
				break
			}
		}

		from = order.OrderStatus
		switch {
		case from == enums.OrderStatusCompleted:
			// the order was closed by another path; nothing left to cascade
		case allCompleted:
			orderCompleted = true
			if err := s.moveOrder(ctx, tx, order, enums.OrderStatusCompleted, timeline.Entry{
				Notes:       "All assignments completed",
				PerformedBy: input.actorID(),
				At:          &now,
			}); err != nil {
				return err
			}
		default:
			notes := "Assignment completed by " + input.actorKind() + "."
			if assignment.CompletionNotes != nil {
				notes += " " + *assignment.CompletionNotes
			}
			if err := s.moveOrder(ctx, tx, order, enums.OrderStatusInProgress, timeline.Entry{
				Notes:       notes,
				PerformedBy: input.actorID(),
				At:          &now,
			}); err != nil {
				return err
			}
		}

		return s.emitAssignment(ctx, tx, enums.EventAssignmentCompleted, assignment, orderCompleted, input.ActorInput)
	})
	if err != nil {
		return nil, pkgerrors.Classify(err, "complete assignment")
	}

	s.metrics.ObserveCompletion(orderCompleted)
	if from != order.OrderStatus {
		s.metrics.ObserveTransition(string(from), string(order.OrderStatus), metrics.SourceAssignment)
	}
	logCtx := s.logg.WithField(s.assignmentCtx(ctx, assignment, order), "order_completed", orderCompleted)
	s.logg.Info(logCtx, "assignment.completed")
	return s.result(ctx, assignment, order, orderCompleted), nil
}

// moveOrder saves order in status to (when it differs) and always appends the timeline entry.
func (s *service) moveOrder(ctx context.Context, tx *gorm.DB, order *models.WorkOrder, to enums.OrderStatus, entry timeline.Entry) error {
	from := order.OrderStatus
	if from != to {
		order.OrderStatus = to
		if err := s.orders.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}
	}
	entry.Order = order
	entry.From = from
	entry.To = to
	_, err := s.timeline.Record(ctx, tx, entry)
	return err
}

// lockForActor runs the shared checks in order: existence, order ownership,
// actor match. It then row-locks the parent order and re-reads the assignment.
func (s *service) lockForActor(ctx context.Context, tx *gorm.DB, input ActorInput) (*models.Assignment, *models.WorkOrder, error) {
	repo := s.repo.WithTx(tx)
	assignment, err := repo.FindByID(ctx, input.AssignmentID)
	if err != nil {
		return nil, nil, pkgerrors.Lookup(err, "assignment not found", "load assignment")
	}
	if assignment.OrderID != input.OrderID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment does not belong to this order").
			WithDetails(map[string]any{"assignment_id": assignment.ID, "order_id": input.OrderID})
	}
	if !input.matches(assignment) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not assigned to this "+input.actorKind())
	}

	order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, assignment.OrderID)
	if err != nil {
		return nil, nil, pkgerrors.Lookup(err, "work order not found", "load work order")
	}
	assignment, err = repo.FindByID(ctx, input.AssignmentID)
	if err != nil {
		return nil, nil, pkgerrors.Lookup(err, "assignment not found", "load assignment")
	}
	return assignment, order, nil
}

func (s *service) emitAssignment(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, a *models.Assignment, orderCompleted bool, input ActorInput) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   a.ID,
		Actor:         &outbox.ActorRef{ActorID: input.actorID(), Kind: input.actorKind()},
		Data: payloads.AssignmentEvent{
			AssignmentID:   a.ID,
			OrderID:        a.OrderID,
			CollectorID:    a.CollectorID,
			CrewID:         a.CrewID,
			Status:         a.Status,
			OrderCompleted: orderCompleted,
		},
	})
}

// result attaches display data; lookups run after commit and a failure only drops the display block.
func (s *service) result(ctx context.Context, a *models.Assignment, order *models.WorkOrder, orderCompleted bool) *Result {
	view := viewOf(a)
	if s.refs != nil {
		if a.CollectorID != nil {
			if ref, err := s.refs.Collector(ctx, *a.CollectorID); err == nil {
				view.Collector = ref
			} else {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "assignment.collector_lookup_failed")
			}
		}
		if a.CrewID != nil {
			if ref, err := s.refs.Crew(ctx, *a.CrewID); err == nil {
				view.Crew = ref
			} else {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "assignment.crew_lookup_failed")
			}
		}
	}
	return &Result{Assignment: view, Order: snapshotOf(order), OrderCompleted: orderCompleted}
}

func (s *service) GetAssignment(ctx context.Context, id uuid.UUID) (*AssignmentView, error) {
	assignment, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, pkgerrors.Lookup(err, "assignment not found", "get assignment")
	}
	view := viewOf(assignment)
	return &view, nil
}

func (s *service) ListCollectorAssignments(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]AssignmentView, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment status")
	}
	rows, err := s.repo.ListByCollector(ctx, collectorID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list collector assignments")
	}
	return viewsOf(rows), nil
}

func (s *service) ListCrewAssignments(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]AssignmentView, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment status")
	}
	rows, err := s.repo.ListByCrew(ctx, crewID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list crew assignments")
	}
	return viewsOf(rows), nil
}

func viewsOf(rows []models.Assignment) []AssignmentView {
	out := make([]AssignmentView, 0, len(rows))
	for i := range rows {
		out = append(out, viewOf(&rows[i]))
	}
	return out
}

func (s *service) assignmentCtx(ctx context.Context, a *models.Assignment, order *models.WorkOrder) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"assignment_id": a.ID.String(),
		"order_id":      order.ID.String(),
		"order_number":  order.OrderNumber,
		"order_status":  order.OrderStatus,
		"actor_kind":    a.ActorKind(),
	})
}

func assignmentTransitionError(from, to enums.AssignmentStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("assignment is already %s", from)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func orderClosedError(order *models.WorkOrder) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("work order is %s", order.OrderStatus)).
		WithDetails(map[string]any{"order_status": order.OrderStatus})
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

