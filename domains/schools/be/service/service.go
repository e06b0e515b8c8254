package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/schoolspace/platform/go/requesttrace"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound   = errors.New("school not found")
	ErrConflict   = errors.New("school code, subdomain or namespace already exists")
	ErrValidation = errors.New("invalid school input")
)

// School is the directory entry as seen by platform administrators.
type School struct {
	tenant.School
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a new school.
type CreateInput struct {
	Name      string
	Code      string
	Subdomain string
	// Status applied once provisioning succeeds. Defaults to active.
	Status tenant.Status
}

// RoutingInput carries the routing keys to change. Nil fields are left as they are.
type RoutingInput struct {
	Subdomain *string
	Code      *string
}

// ListOptions captures filters and pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *tenant.Status
}

// ListResult wraps paginated schools.
type ListResult struct {
	Schools    []School
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts directory persistence.
type Repository interface {
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id int64) (School, error)
	Create(ctx context.Context, s School) (School, error)
	UpdateStatus(ctx context.Context, id int64, status tenant.Status) (School, error)
	UpdateRouting(ctx context.Context, id int64, input RoutingInput) (School, error)
}

// Provisioner prepares the namespace of a new school. Ensure must be idempotent.
type Provisioner interface {
	Ensure(ctx context.Context, namespace string) error
}

// Invalidator drops resolution state for a school on this instance and its peers.
type Invalidator interface {
	Broadcast(ctx context.Context, schoolID int64) error
}

// Config wires the service dependencies.
type Config struct {
	Repo               Repository
	Provisioner        Provisioner
	Invalidator        Invalidator
	ReservedSubdomains []string
	Logger             *zap.Logger
}

// Service provides school directory administration. Every mutation of status or
// routing keys invalidates cached resolutions once the write has been stored.
type Service struct {
	repo        Repository
	provisioner Provisioner
	invalidator Invalidator
	reserved    []string
	logger      *zap.Logger
}

// New constructs a Service with required dependencies.
func New(cfg Config) *Service {
	if cfg.Repo == nil {
		panic("schools repo is required")
	}
	if cfg.Provisioner == nil {
		panic("schools provisioner is required")
	}
	if cfg.Invalidator == nil {
		panic("schools invalidator is required")
	}
	if cfg.ReservedSubdomains == nil {
		cfg.ReservedSubdomains = tenant.DefaultReservedSubdomains
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repo:        cfg.Repo,
		provisioner: cfg.Provisioner,
		invalidator: cfg.Invalidator,
		reserved:    cfg.ReservedSubdomains,
		logger:      cfg.Logger,
	}
}

// List schools with optional status filter.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return s.repo.List(ctx, opts)
}

// Get returns a school by id.
func (s *Service) Get(ctx context.Context, id int64) (School, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a school in the provisioning state, prepares its namespace and
// then moves it to the requested status. A failed provisioning leaves the school
// in the provisioning state so it can be retried.
func (s *Service) Create(ctx context.Context, input CreateInput) (School, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return School{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	code, err := tenant.NormalizeCode(input.Code)
	if err != nil {
		return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	subdomain := input.Subdomain
	if strings.TrimSpace(subdomain) == "" {
		subdomain = code
	}
	if subdomain, err = tenant.NormalizeSubdomain(subdomain, s.reserved); err != nil {
		return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	status := input.Status
	if status == "" {
		status = tenant.StatusActive
	}
	if _, err := tenant.ParseStatus(string(status)); err != nil {
		return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	namespace, err := tenant.BuildNamespace(code)
	if err != nil {
		return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := s.repo.Create(ctx, School{School: tenant.School{
		Name:      name,
		Code:      code,
		Subdomain: subdomain,
		Namespace: namespace,
		Status:    tenant.StatusProvisioning,
	}})
	if err != nil {
		return School{}, err
	}

	s.audit(ctx, "school registered", created)

	if err := s.provisioner.Ensure(ctx, namespace); err != nil {
		s.logger.Error("school provisioning failed",
			zap.Int64("school_id", created.ID), zap.String("namespace", namespace), zap.Error(err))
		return created, fmt.Errorf("provision school %d: %w", created.ID, err)
	}

	if status == tenant.StatusProvisioning {
		return created, nil
	}
	return s.SetStatus(ctx, created.ID, status)
}

// SetStatus changes the lifecycle status of a school.
func (s *Service) SetStatus(ctx context.Context, id int64, status tenant.Status) (School, error) {
	if _, err := tenant.ParseStatus(string(status)); err != nil {
		return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return School{}, err
	}
	s.audit(ctx, "school status changed", updated, zap.String("status", string(status)))
	s.invalidate(ctx, id, "status")
	return updated, nil
}

// UpdateRouting changes the subdomain and/or code of a school. The namespace never
// changes.
func (s *Service) UpdateRouting(ctx context.Context, id int64, input RoutingInput) (School, error) {
	if input.Subdomain == nil && input.Code == nil {
		return School{}, fmt.Errorf("%w: subdomain or code is required", ErrValidation)
	}

	var normalized RoutingInput
	if input.Subdomain != nil {
		sub, err := tenant.NormalizeSubdomain(*input.Subdomain, s.reserved)
		if err != nil {
			return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		normalized.Subdomain = &sub
	}
	if input.Code != nil {
		code, err := tenant.NormalizeCode(*input.Code)
		if err != nil {
			return School{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		normalized.Code = &code
	}

	updated, err := s.repo.UpdateRouting(ctx, id, normalized)
	if err != nil {
		return School{}, err
	}
	s.audit(ctx, "school routing changed", updated, zap.String("subdomain", updated.Subdomain), zap.String("code", updated.Code))
	s.invalidate(ctx, id, "routing")
	return updated, nil
}

// invalidate runs after the store write. The local cache is always cleared; a
// failed publish only leaves peers on their TTL, so it is logged, not returned.
func (s *Service) invalidate(ctx context.Context, id int64, reason string) {
	if err := s.invalidator.Broadcast(ctx, id); err != nil {
		s.logger.Error("school invalidation not published",
			zap.Int64("school_id", id), zap.String("reason", reason), zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, msg string, school School, extra ...zap.Field) {
	fields := requesttrace.FromContextOrSystem(ctx).Fields()
	fields = append(fields, zap.Int64("school_id", school.ID), zap.String("namespace", school.Namespace))
	s.logger.Info(msg, append(fields, extra...)...)
}
