package assignments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/scrapfield-backend/api/middleware"
	"github.com/angelmondragon/scrapfield-backend/api/responses"
	"github.com/angelmondragon/scrapfield-backend/api/validators"
	internalassignments "github.com/angelmondragon/scrapfield-backend/internal/assignments"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
)

type actorRequest struct {
	CollectorID *uuid.UUID `json:"collector_id"`
	CrewID      *uuid.UUID `json:"crew_id"`
}

type completeRequest struct {
	actorRequest
	CompletionNotes  *string  `json:"completion_notes" validate:"omitempty,max=2000"`
	CompletionPhotos []string `json:"completion_photos" validate:"omitempty,dive,required"`
}

// Start moves an assignment to IN_PROGRESS.
func Start(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body actorRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := actorInput(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartAssignment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, "Assignment started", result)
	}
}

// Complete closes an assignment and cascades to the order when every sibling is done.
func Complete(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body completeRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := actorInput(r, body.actorRequest)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CompleteAssignment(r.Context(), internalassignments.CompleteInput{
			ActorInput:       input,
			CompletionNotes:  body.CompletionNotes,
			CompletionPhotos: body.CompletionPhotos,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		message := "Assignment completed"
		if result.OrderCompleted {
			message = "Assignment completed, work order completed"
		}
		responses.WriteSuccessStatus(w, http.StatusOK, message, result)
	}
}

func Get(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetAssignment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListForCollector lists a collector's assignments. Collectors may only list their own.
func ListForCollector(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		collectorID, err := validators.PathUUID(r, "collectorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role == enums.ActorRoleCollector && actor.ID != collectorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot list another collector's assignments"))
			return
		}
		status, err := statusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListCollectorAssignments(r.Context(), collectorID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// ListForCrew lists a crew's assignments. Collectors must belong to the crew.
func ListForCrew(svc internalassignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		crewID, err := validators.PathUUID(r, "crewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role == enums.ActorRoleCollector && !actor.HasCrew(crewID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this crew"))
			return
		}
		status, err := statusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListCrewAssignments(r.Context(), crewID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// actorInput resolves who is acting. A collector acts as themselves unless they name
// one of their crews; dispatchers and admins act on behalf of whoever the body names.
func actorInput(r *http.Request, body actorRequest) (internalassignments.ActorInput, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return internalassignments.ActorInput{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	orderID, err := validators.PathUUID(r, "orderId")
	if err != nil {
		return internalassignments.ActorInput{}, err
	}
	assignmentID, err := validators.PathUUID(r, "assignmentId")
	if err != nil {
		return internalassignments.ActorInput{}, err
	}

	input := internalassignments.ActorInput{
		OrderID:      orderID,
		AssignmentID: assignmentID,
		CollectorID:  body.CollectorID,
		CrewID:       body.CrewID,
	}
	if actor.Role != enums.ActorRoleCollector {
		return input, nil
	}

	switch {
	case body.CrewID != nil:
		if !actor.HasCrew(*body.CrewID) {
			return input, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this crew")
		}
	case body.CollectorID != nil:
		if *body.CollectorID != actor.ID {
			return input, pkgerrors.New(pkgerrors.CodeForbidden, "cannot act for another collector")
		}
	default:
		id := actor.ID
		input.CollectorID = &id
	}
	return input, nil
}

func statusFilter(r *http.Request) (*enums.AssignmentStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseAssignmentStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment status")
	}
	return &status, nil
}

func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return validators.Struct(dest)
	}
	return validators.DecodeJSONBody(r, dest)
}
