package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/domains/users/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
)

// BasePath is where the school users routes are mounted.
const BasePath = "/api/v1/users"

// Handler wires the users service to HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes registers the handlers on r. Callers mount it behind strict tenant binding.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{userId}", h.Get)
}

// User is the JSON representation of a school user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserList is a page of users.
type UserList struct {
	Items      []User `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
}

type createUser struct {
	Email    string `json:"email" validate:"required,max=320"`
	FullName string `json:"fullName" validate:"required,max=200"`
}

// List implements GET /api/v1/users
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

	items := make([]User, 0, len(result.Users))
	for _, u := range result.Users {
		items = append(items, toAPIUser(u))
	}
	writeJSON(w, http.StatusOK, UserList{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// Create implements POST /api/v1/users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createUser
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.problem(w, r, &service.ValidationError{Fields: service.FieldErrors{"body": {err.Error()}}})
		return
	}
	if fields := httperror.ValidateRequest(body); fields != nil {
		h.problem(w, r, &service.ValidationError{Fields: service.FieldErrors(fields)})
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{Email: body.Email, FullName: body.FullName})
	if err != nil {
		h.problem(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", BasePath, created.ID))
	writeJSON(w, http.StatusCreated, toAPIUser(created))
}

// Get implements GET /api/v1/users/{userId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.problem(w, r, &service.ValidationError{Fields: service.FieldErrors{"userId": {"must be a UUID"}}})
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.problem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIUser(user))
}

func (h *Handler) problem(w http.ResponseWriter, r *http.Request, err error) {
	var (
		p          httperror.Problem
		validation *service.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		p = httperror.New(http.StatusBadRequest, httperror.CodeValidation, "Validation failed", "request validation failed")
		p.Errors = validation.Fields
	case errors.Is(err, service.ErrNotFound):
		p = httperror.New(http.StatusNotFound, httperror.CodeNotFound, "Not found", err.Error())
	case errors.Is(err, service.ErrConflict):
		p = httperror.New(http.StatusConflict, httperror.CodeConflict, "Conflict", "a user with this email already exists")
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
	fields := service.FieldErrors{}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["page"] = append(fields["page"], "must be a positive integer")
		}
		opts.Page = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["pageSize"] = append(fields["pageSize"], "must be a positive integer")
		}
		opts.PageSize = n
	}
	if v := q.Get("sort"); v != "" {
		opts.Sort = &v
	}
	if v := q.Get("email"); v != "" {
		opts.Email = &v
	}

	if len(fields) > 0 {
		return opts, &service.ValidationError{Fields: fields}
	}
	return opts, nil
}

func toAPIUser(u service.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
