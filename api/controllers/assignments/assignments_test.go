package assignments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scrapfield-backend/api/middleware"
	internalassignments "github.com/angelmondragon/scrapfield-backend/internal/assignments"
	"github.com/angelmondragon/scrapfield-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/scrapfield-backend/pkg/errors"
)

type stubService struct {
	start         func(ctx context.Context, input internalassignments.ActorInput) (*internalassignments.Result, error)
	complete      func(ctx context.Context, input internalassignments.CompleteInput) (*internalassignments.Result, error)
	get           func(ctx context.Context, id uuid.UUID) (*internalassignments.AssignmentView, error)
	listCollector func(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error)
	listCrew      func(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error)
}

func (s *stubService) StartAssignment(ctx context.Context, input internalassignments.ActorInput) (*internalassignments.Result, error) {
	return s.start(ctx, input)
}

func (s *stubService) CompleteAssignment(ctx context.Context, input internalassignments.CompleteInput) (*internalassignments.Result, error) {
	return s.complete(ctx, input)
}

func (s *stubService) GetAssignment(ctx context.Context, id uuid.UUID) (*internalassignments.AssignmentView, error) {
	return s.get(ctx, id)
}

func (s *stubService) ListCollectorAssignments(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error) {
	return s.listCollector(ctx, collectorID, status)
}

func (s *stubService) ListCrewAssignments(ctx context.Context, crewID uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error) {
	return s.listCrew(ctx, crewID, status)
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func serve(t *testing.T, handler http.HandlerFunc, target, body string, actor middleware.Actor, params map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithActor(ctx, actor)
	resp := httptest.NewRecorder()
	handler(resp, req.WithContext(ctx))

	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return resp, env
}

func TestStartDefaultsToCallingCollector(t *testing.T) {
	collector := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector}
	orderID, assignmentID := uuid.New(), uuid.New()

	var captured internalassignments.ActorInput
	svc := &stubService{start: func(ctx context.Context, input internalassignments.ActorInput) (*internalassignments.Result, error) {
		captured = input
		return &internalassignments.Result{}, nil
	}}

	resp, env := serve(t, Start(svc, nil), "/", "", collector, map[string]string{
		"orderId":      orderID.String(),
		"assignmentId": assignmentID.String(),
	})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Assignment started", env.Message)
	assert.Equal(t, orderID, captured.OrderID)
	assert.Equal(t, assignmentID, captured.AssignmentID)
	require.NotNil(t, captured.CollectorID)
	assert.Equal(t, collector.ID, *captured.CollectorID)
	assert.Nil(t, captured.CrewID)
}

func TestActorChecksForCollectors(t *testing.T) {
	crewID := uuid.New()
	collector := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector, CrewIDs: []uuid.UUID{crewID}}
	params := map[string]string{"orderId": uuid.NewString(), "assignmentId": uuid.NewString()}

	called := 0
	svc := &stubService{complete: func(ctx context.Context, input internalassignments.CompleteInput) (*internalassignments.Result, error) {
		called++
		return &internalassignments.Result{OrderCompleted: true}, nil
	}}

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "own crew", body: `{"crew_id":"` + crewID.String() + `","completion_notes":"done"}`, status: http.StatusOK},
		{name: "foreign crew", body: `{"crew_id":"` + uuid.NewString() + `"}`, status: http.StatusForbidden},
		{name: "other collector", body: `{"collector_id":"` + uuid.NewString() + `"}`, status: http.StatusForbidden},
		{name: "unknown field", body: `{"order_id":"x"}`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := serve(t, Complete(svc, nil), "/", tc.body, collector, params)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
	assert.Equal(t, 1, called)
}

func TestCompleteReportsCascade(t *testing.T) {
	dispatcher := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleDispatcher}
	crewID := uuid.New()
	params := map[string]string{"orderId": uuid.NewString(), "assignmentId": uuid.NewString()}

	var captured internalassignments.CompleteInput
	svc := &stubService{complete: func(ctx context.Context, input internalassignments.CompleteInput) (*internalassignments.Result, error) {
		captured = input
		return &internalassignments.Result{OrderCompleted: true}, nil
	}}

	resp, env := serve(t, Complete(svc, nil), "/", `{"crew_id":"`+crewID.String()+`","completion_photos":["a.jpg"]}`, dispatcher, params)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Assignment completed, work order completed", env.Message)
	assert.Equal(t, crewID, *captured.CrewID)
	assert.Nil(t, captured.CollectorID)
	assert.Equal(t, []string{"a.jpg"}, captured.CompletionPhotos)
}

func TestCompleteSurfacesServiceErrors(t *testing.T) {
	collector := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector}
	params := map[string]string{"orderId": uuid.NewString(), "assignmentId": uuid.NewString()}

	for code, status := range map[pkgerrors.Code]int{
		pkgerrors.CodeNotFound:          http.StatusNotFound,
		pkgerrors.CodeConflict:          http.StatusConflict,
		pkgerrors.CodeUnauthorized:      http.StatusUnauthorized,
		pkgerrors.CodeInvalidTransition: http.StatusBadRequest,
	} {
		svc := &stubService{complete: func(ctx context.Context, input internalassignments.CompleteInput) (*internalassignments.Result, error) {
			return nil, pkgerrors.New(code, "nope")
		}}
		resp, env := serve(t, Complete(svc, nil), "/", "", collector, params)
		assert.Equal(t, status, resp.Code, code)
		assert.Equal(t, string(code), env.Error.Code)
	}
}

func TestListForCollectorScopesCollectors(t *testing.T) {
	collector := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector}

	var gotStatus *enums.AssignmentStatus
	svc := &stubService{listCollector: func(ctx context.Context, collectorID uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error) {
		gotStatus = status
		return []internalassignments.AssignmentView{{ID: uuid.New(), CollectorID: &collectorID}}, nil
	}}

	resp, _ := serve(t, ListForCollector(svc, nil), "/?status=PENDING", "", collector, map[string]string{"collectorId": collector.ID.String()})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, gotStatus)
	assert.Equal(t, enums.AssignmentStatusPending, *gotStatus)

	resp, _ = serve(t, ListForCollector(svc, nil), "/", "", collector, map[string]string{"collectorId": uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp, _ = serve(t, ListForCollector(svc, nil), "/?status=DONE", "", collector, map[string]string{"collectorId": collector.ID.String()})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListForCrewRequiresMembership(t *testing.T) {
	crewID := uuid.New()
	member := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector, CrewIDs: []uuid.UUID{crewID}}
	outsider := middleware.Actor{ID: uuid.New(), Role: enums.ActorRoleCollector}

	svc := &stubService{listCrew: func(ctx context.Context, id uuid.UUID, status *enums.AssignmentStatus) ([]internalassignments.AssignmentView, error) {
		return []internalassignments.AssignmentView{}, nil
	}}
	params := map[string]string{"crewId": crewID.String()}

	resp, env := serve(t, ListForCrew(svc, nil), "/", "", member, params)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "[]", string(env.Data))

	resp, _ = serve(t, ListForCrew(svc, nil), "/", "", outsider, params)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}
