package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/assignment-engine/modules/assignment/domain/aggregates/assignment"
	"github.com/iota-uz/assignment-engine/modules/assignment/presentation/controllers/dtos"
	"github.com/iota-uz/assignment-engine/modules/assignment/services"
	"github.com/iota-uz/assignment-engine/pkg/application"
	"github.com/iota-uz/assignment-engine/pkg/composables"
	"github.com/iota-uz/assignment-engine/pkg/httpapi"
)

// Identity headers. Authentication itself lives at the gateway; the engine
// trusts these headers the way it would trust a session principal.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type AssignmentAPIController struct {
	app       application.Application
	admission *services.AdmissionService
	query     *services.AssignmentQueryService
	workflow  *services.WorkflowService
	escalate  *services.EscalationService
	logger    *logrus.Logger
	basePath  string
}

func NewAssignmentAPIController(app application.Application) application.Controller {
	return &AssignmentAPIController{
		app:       app,
		admission: app.Service(services.AdmissionService{}).(*services.AdmissionService),
		query:     app.Service(services.AssignmentQueryService{}).(*services.AssignmentQueryService),
		workflow:  app.Service(services.WorkflowService{}).(*services.WorkflowService),
		escalate:  app.Service(services.EscalationService{}).(*services.EscalationService),
		logger:    app.Logger(),
		basePath:  "/api/v1",
	}
}

func (c *AssignmentAPIController) Key() string {
	return c.basePath
}

func (c *AssignmentAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(c.withActor)

	router.HandleFunc("/work-items", c.submitWorkItem).Methods(http.MethodPost)
	router.HandleFunc("/assignments/my", c.myAssignments).Methods(http.MethodGet)
	router.HandleFunc("/assignments/{id}/escalate", c.escalateAssignment).Methods(http.MethodPost)
	router.HandleFunc("/assignments/{id}/stage", c.moveStage).Methods(http.MethodPost)
	router.HandleFunc("/assignments/{id}/related", c.relatedAssignments).Methods(http.MethodGet)
	router.HandleFunc("/assignments/{id}/timeline", c.timeline).Methods(http.MethodGet)
	router.HandleFunc("/assignments/{id}/observers", c.addObserver).Methods(http.MethodPost)
	router.HandleFunc("/assignments/{id}/escalations", c.listEscalations).Methods(http.MethodGet)
	router.HandleFunc("/escalations/{id}/acknowledge", c.acknowledgeEscalation).Methods(http.MethodPost)
	router.HandleFunc("/escalations/{id}/resolve", c.resolveEscalation).Methods(http.MethodPost)
}

// withActor resolves the caller identity from headers and the database pool
// into the request context.
func (c *AssignmentAPIController) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusUnauthorized, "ASSIGNMENT_UNAUTHENTICATED", "missing or malformed "+HeaderUserID+" header", nil)
			return
		}
		role := r.Header.Get(HeaderUserRole)
		if role == "" {
			role = services.RoleStaff
		}

		ctx := composables.WithActor(r.Context(), composables.Actor{ID: userID, Role: role})
		ctx = composables.WithPool(ctx, c.app.DB())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *AssignmentAPIController) writeError(w http.ResponseWriter, err error) {
	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) {
		var meta map[string]string
		if len(serviceErr.Meta) > 0 {
			meta = make(map[string]string, len(serviceErr.Meta))
			for k, v := range serviceErr.Meta {
				meta[k] = fmt.Sprint(v)
			}
		}
		if serviceErr.Status == http.StatusTooManyRequests {
			if retry, ok := meta["retry_after_seconds"]; ok {
				w.Header().Set("Retry-After", retry)
			}
		}
		_ = httpapi.WriteError(w, serviceErr.Status, serviceErr.Code, serviceErr.Message, meta)
		return
	}

	c.logger.WithError(err).Error("assignment api: unhandled error")
	_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", nil)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func (c *AssignmentAPIController) submitWorkItem(w http.ResponseWriter, r *http.Request) {
	var req dtos.SubmitWorkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "request body is not valid JSON", nil)
		return
	}

	result, err := c.admission.SubmitWorkItem(r.Context(), services.SubmitParams{
		WorkItemID:     req.WorkItemID,
		WorkItemType:   assignment.WorkItemType(req.WorkItemType),
		UnitID:         req.UnitID,
		EngagementID:   req.EngagementID,
		RequiredSkills: req.RequiredSkills,
		Priority:       assignment.Priority(req.Priority),
	})
	if err != nil {
		c.writeError(w, err)
		return
	}

	if result.Assigned != nil {
		view := dtos.ToAssignmentViewResponse(c.query.View(*result.Assigned))
		_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.SubmitWorkItemResponse{
			Outcome:    "assigned",
			Assignment: &view,
		})
		return
	}

	queued := dtos.ToQueuedResponse(*result.Queued, result.Position)
	_ = httpapi.WriteJSON(w, http.StatusAccepted, dtos.SubmitWorkItemResponse{
		Outcome: "queued",
		Queue:   &queued,
	})
}

func (c *AssignmentAPIController) myAssignments(w http.ResponseWriter, r *http.Request) {
	filter := services.MyAssignmentsFilter{
		Status:           assignment.Status(r.URL.Query().Get("status")),
		IncludeCompleted: r.URL.Query().Get("include_completed") == "true",
	}
	result, err := c.query.MyAssignments(r.Context(), filter)
	if err != nil {
		c.writeError(w, err)
		return
	}

	resp := dtos.MyAssignmentsResponse{
		Items: make([]dtos.AssignmentViewResponse, 0, len(result.Items)),
		Summary: dtos.WorkloadSummaryResponse{
			Total:      result.Summary.Total,
			Active:     result.Summary.Active,
			Pending:    result.Summary.Pending,
			InProgress: result.Summary.InProgress,
			Completed:  result.Summary.Completed,
			AtRisk:     result.Summary.AtRisk,
			Overdue:    result.Summary.Overdue,
		},
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, dtos.ToAssignmentViewResponse(item))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *AssignmentAPIController) escalateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}
	var req dtos.EscalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "request body is not valid JSON", nil)
		return
	}

	updated, err := c.escalate.Escalate(r.Context(), id, req.Reason, req.Version)
	if err != nil {
		c.writeError(w, err)
		return
	}
	view := dtos.ToAssignmentViewResponse(c.query.View(updated))
	_ = httpapi.WriteJSON(w, http.StatusOK, view)
}

func (c *AssignmentAPIController) moveStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}
	var req dtos.MoveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "request body is not valid JSON", nil)
		return
	}

	updated, err := c.workflow.MoveStage(r.Context(), id, assignment.Stage(req.Stage), req.Version)
	if err != nil {
		c.writeError(w, err)
		return
	}
	view := dtos.ToAssignmentViewResponse(c.query.View(updated))
	_ = httpapi.WriteJSON(w, http.StatusOK, view)
}

func (c *AssignmentAPIController) relatedAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}

	result, err := c.query.RelatedAssignments(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}

	resp := dtos.RelatedAssignmentsResponse{
		Items: make([]dtos.AssignmentViewResponse, 0, len(result.Items)),
		Progress: dtos.EngagementProgressResponse{
			Total:     result.Progress.Total,
			Completed: result.Progress.Completed,
			Percent:   result.Progress.Percent,
		},
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, dtos.ToAssignmentViewResponse(item))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *AssignmentAPIController) timeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}

	events, err := c.query.Timeline(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}

	resp := make([]dtos.TimelineEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dtos.ToTimelineEventResponse(ev))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *AssignmentAPIController) listEscalations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}

	records, err := c.escalate.ListEscalations(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}

	resp := make([]dtos.EscalationResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, dtos.ToEscalationResponse(rec))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *AssignmentAPIController) acknowledgeEscalation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "escalation id is not a valid uuid", nil)
		return
	}

	rec, err := c.escalate.Acknowledge(r.Context(), id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.ToEscalationResponse(rec))
}

func (c *AssignmentAPIController) resolveEscalation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "escalation id is not a valid uuid", nil)
		return
	}
	var req dtos.ResolveEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "request body is not valid JSON", nil)
		return
	}

	rec, err := c.escalate.Resolve(r.Context(), id, req.Note)
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.ToEscalationResponse(rec))
}

func (c *AssignmentAPIController) addObserver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "assignment id is not a valid uuid", nil)
		return
	}
	var req dtos.AddObserverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", "user_id is required", nil)
		return
	}

	if err := c.query.AddObserver(r.Context(), id, req.UserID); err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}
