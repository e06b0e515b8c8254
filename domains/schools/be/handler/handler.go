package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// BasePath is where the platform school routes are mounted.
const BasePath = "/api/v1/platform/schools"

// Handler exposes the schools service over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("schools service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes registers the handlers on r. Callers mount it behind platform admin checks.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{schoolId}", h.Get)
	r.Put("/{schoolId}/status", h.SetStatus)
	r.Patch("/{schoolId}/routing", h.UpdateRouting)
}

// School is the JSON representation of a directory entry.
type School struct {
	SchoolID  int64     `json:"schoolId"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Subdomain string    `json:"subdomain"`
	Namespace string    `json:"namespace"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SchoolList is a page of schools.
type SchoolList struct {
	Items      []School `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}

type createRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Code      string `json:"code" validate:"required,max=63"`
	Subdomain string `json:"subdomain" validate:"max=63"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive archived"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type routingRequest struct {
	Subdomain *string `json:"subdomain" validate:"omitempty,max=63"`
	Code      *string `json:"code" validate:"omitempty,max=63"`
}

// List implements GET /api/v1/platform/schools
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := buildListOptions(r)
	if err != nil {
		h.problem(w, r, err)
		return
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.problem(w, r, err)
		return
	}

	items := make([]School, 0, len(result.Schools))
	for _, s := range result.Schools {
		items = append(items, toAPISchool(s))
	}
	writeJSON(w, http.StatusOK, SchoolList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// Create implements POST /api/v1/platform/schools
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decode(r, &body); err != nil {
		h.problem(w, r, err)
		return
	}
	if fields := httperror.ValidateRequest(body); fields != nil {
		httperror.Write(w, httperror.ValidationProblem(fields))
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		Name:      body.Name,
		Code:      body.Code,
		Subdomain: body.Subdomain,
		Status:    tenant.Status(body.Status),
	})
	if err != nil {
		h.problem(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%d", BasePath, created.ID))
	writeJSON(w, http.StatusCreated, toAPISchool(created))
}

// Get implements GET /api/v1/platform/schools/{schoolId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := schoolID(r)
	if err != nil {
		h.problem(w, r, err)
		return
	}

	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISchool(s))
}

// SetStatus implements PUT /api/v1/platform/schools/{schoolId}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := schoolID(r)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	var body statusRequest
	if err := decode(r, &body); err != nil {
		h.problem(w, r, err)
		return
	}
	if fields := httperror.ValidateRequest(body); fields != nil {
		httperror.Write(w, httperror.ValidationProblem(fields))
		return
	}

	updated, err := h.svc.SetStatus(r.Context(), id, tenant.Status(body.Status))
	if err != nil {
		h.problem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISchool(updated))
}

// UpdateRouting implements PATCH /api/v1/platform/schools/{schoolId}/routing
func (h *Handler) UpdateRouting(w http.ResponseWriter, r *http.Request) {
	id, err := schoolID(r)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	var body routingRequest
	if err := decode(r, &body); err != nil {
		h.problem(w, r, err)
		return
	}
	if fields := httperror.ValidateRequest(body); fields != nil {
		httperror.Write(w, httperror.ValidationProblem(fields))
		return
	}

	updated, err := h.svc.UpdateRouting(r.Context(), id, service.RoutingInput{
		Subdomain: body.Subdomain,
		Code:      body.Code,
	})
	if err != nil {
		h.problem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISchool(updated))
}

func (h *Handler) problem(w http.ResponseWriter, r *http.Request, err error) {
	var p httperror.Problem
	switch {
	case errors.Is(err, service.ErrValidation):
		p = httperror.New(http.StatusBadRequest, httperror.CodeValidation, "Invalid request", err.Error())
	case errors.Is(err, service.ErrNotFound):
		p = httperror.New(http.StatusNotFound, httperror.CodeNotFound, "Not found", err.Error())
	case errors.Is(err, service.ErrConflict):
		p = httperror.New(http.StatusConflict, httperror.CodeConflict, "Conflict", err.Error())
	default:
		httperror.Respond(w, r, h.logger, err)
		return
	}
	httperror.Log(h.logger, p, err)
	httperror.Write(w, p)
}

func buildListOptions(r *http.Request) (service.ListOptions, error) {
	q := r.URL.Query()
	opts := service.ListOptions{Page: 1, PageSize: 20}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("%w: page must be a positive integer", service.ErrValidation)
		}
		opts.Page = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return opts, fmt.Errorf("%w: pageSize must be between 1 and 100", service.ErrValidation)
		}
		opts.PageSize = n
	}
	if v := q.Get("status"); v != "" {
		st, err := tenant.ParseStatus(v)
		if err != nil {
			return opts, fmt.Errorf("%w: %v", service.ErrValidation, err)
		}
		opts.Status = &st
	}
	return opts, nil
}

func schoolID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "schoolId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: schoolId must be a positive integer", service.ErrValidation)
	}
	return id, nil
}

func decode(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: request body is required", service.ErrValidation)
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toAPISchool(s service.School) School {
	return School{
		SchoolID:  s.ID,
		Name:      s.Name,
		Code:      s.Code,
		Subdomain: s.Subdomain,
		Namespace: s.Namespace,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
