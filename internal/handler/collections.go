package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/collections-engine/internal/domain"
	"github.com/segyhp/collections-engine/internal/service"
	customError "github.com/segyhp/collections-engine/pkg/errors"
	"github.com/segyhp/collections-engine/pkg/response"
)

// ActorHeader carries the id of the authenticated staff member. Authentication
// happens upstream; this service only records who acted.
const ActorHeader = "X-User-ID"

const anonymousActor = "anonymous"

// CollectionsService is the part of the service layer the API exposes
type CollectionsService interface {
	ListCases(ctx context.Context, clinicID string, q service.CaseQuery) ([]*domain.DelinquencyCase, error)
	GetCase(ctx context.Context, clinicID string, caseID uuid.UUID) (*domain.DelinquencyCase, error)
	RunDetection(ctx context.Context, clinicID string, opts service.DetectOptions) (*service.DetectionResult, error)
	UpdateCaseStatus(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req service.StatusUpdate) (*domain.DelinquencyCase, error)
	MarkViewed(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error)
	DispatchNotice(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string) (*domain.DelinquencyCase, error)
	ReopenCase(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req service.ReopenRequest) (*domain.DelinquencyCase, error)
	AssignCase(ctx context.Context, clinicID string, caseID uuid.UUID, req service.AssignmentUpdate) (*domain.DelinquencyCase, error)
	ScheduleNextAction(ctx context.Context, clinicID string, caseID uuid.UUID, req service.NextActionUpdate) (*domain.DelinquencyCase, error)
	RecordAction(ctx context.Context, clinicID string, caseID uuid.UUID, actorID string, req domain.RecordActionRequest) (*domain.DelinquencyAction, error)
	ListActions(ctx context.Context, clinicID string, caseID uuid.UUID) ([]*domain.DelinquencyAction, error)
	GetStats(ctx context.Context, clinicID string) (domain.Stats, error)
	GetSettings(ctx context.Context, clinicID string) (domain.Settings, error)
	UpdateSettings(ctx context.Context, clinicID string, settings domain.Settings) (domain.Settings, error)
}

type CollectionsHandler struct {
	service CollectionsService
}

func NewCollectionsHandler(service CollectionsService) *CollectionsHandler {
	return &CollectionsHandler{service: service}
}

// Register mounts the clinic routes on the API router
func (h *CollectionsHandler) Register(api *mux.Router) {
	clinic := api.PathPrefix("/clinics/{clinicId}").Subrouter()

	clinic.HandleFunc("/cases", h.ListCases).Methods(http.MethodGet)
	clinic.HandleFunc("/cases/{caseId}", h.GetCase).Methods(http.MethodGet)
	clinic.HandleFunc("/cases/{caseId}/status", h.UpdateStatus).Methods(http.MethodPut)
	clinic.HandleFunc("/cases/{caseId}/viewed", h.MarkViewed).Methods(http.MethodPost)
	clinic.HandleFunc("/cases/{caseId}/notify", h.Notify).Methods(http.MethodPost)
	clinic.HandleFunc("/cases/{caseId}/reopen", h.Reopen).Methods(http.MethodPost)
	clinic.HandleFunc("/cases/{caseId}/assignment", h.Assign).Methods(http.MethodPut)
	clinic.HandleFunc("/cases/{caseId}/next-action", h.ScheduleNextAction).Methods(http.MethodPut)
	clinic.HandleFunc("/cases/{caseId}/actions", h.RecordAction).Methods(http.MethodPost)
	clinic.HandleFunc("/cases/{caseId}/actions", h.ListActions).Methods(http.MethodGet)
	clinic.HandleFunc("/detection", h.RunDetection).Methods(http.MethodPost)
	clinic.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	clinic.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	clinic.HandleFunc("/settings", h.UpdateSettings).Methods(http.MethodPut)
}

func (h *CollectionsHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cases, err := h.service.ListCases(r.Context(), clinicID(r), service.CaseQuery{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, cases)
}

func (h *CollectionsHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCase(r.Context(), clinicID(r), caseID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) RunDetection(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.FromError(w, r, customError.WrapValidation("force", "force must be true or false"))
			return
		}
		force = v
	}

	result, err := h.service.RunDetection(r.Context(), clinicID(r), service.DetectOptions{Force: force})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, result)
}

func (h *CollectionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req service.StatusUpdate
	if !decode(w, r, &req) {
		return
	}

	c, err := h.service.UpdateCaseStatus(r.Context(), clinicID(r), caseID, actor(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	c, err := h.service.MarkViewed(r.Context(), clinicID(r), caseID, actor(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) Notify(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	c, err := h.service.DispatchNotice(r.Context(), clinicID(r), caseID, actor(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req service.ReopenRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	c, err := h.service.ReopenCase(r.Context(), clinicID(r), caseID, actor(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req service.AssignmentUpdate
	if !decode(w, r, &req) {
		return
	}

	c, err := h.service.AssignCase(r.Context(), clinicID(r), caseID, req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) ScheduleNextAction(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req service.NextActionUpdate
	if !decode(w, r, &req) {
		return
	}

	c, err := h.service.ScheduleNextAction(r.Context(), clinicID(r), caseID, req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, c)
}

func (h *CollectionsHandler) RecordAction(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	var req domain.RecordActionRequest
	if !decode(w, r, &req) {
		return
	}

	action, err := h.service.RecordAction(r.Context(), clinicID(r), caseID, actor(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, action)
}

func (h *CollectionsHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseCaseID(w, r)
	if !ok {
		return
	}

	actions, err := h.service.ListActions(r.Context(), clinicID(r), caseID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, actions)
}

func (h *CollectionsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), clinicID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, stats)
}

func (h *CollectionsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context(), clinicID(r))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, settings)
}

func (h *CollectionsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if !decode(w, r, &req) {
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), clinicID(r), req)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Success(w, settings)
}

func clinicID(r *http.Request) string {
	return mux.Vars(r)["clinicId"]
}

func actor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
		return id
	}
	return anonymousActor
}

func parseCaseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["caseId"])
	if err != nil {
		response.FromError(w, r, customError.WrapValidation("case_id", "case id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.FromError(w, r, customError.WrapValidation("body", "invalid request body: "+err.Error()))
		return false
	}
	return true
}
