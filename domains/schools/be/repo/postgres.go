package repo

import (
	"context"
	"errors"
	"strconv"

	"github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// PostgresRepository implements the schools repository on the shared directory table.
type PostgresRepository struct {
	store *persistence.DirectoryStore
}

// NewPostgresRepository constructs a repository backed by DirectoryStore.
func NewPostgresRepository(store *persistence.DirectoryStore) *PostgresRepository {
	if store == nil {
		panic("directory store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	res, err := r.store.List(ctx, persistence.ListSchoolsParams{
		Status:   opts.Status,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	})
	if err != nil {
		return service.ListResult{}, err
	}

	schools := make([]service.School, 0, len(res.Schools))
	for _, rec := range res.Schools {
		schools = append(schools, toServiceSchool(rec))
	}

	return service.ListResult{
		Schools:    schools,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalItems: res.TotalItems,
		TotalPages: (res.TotalItems + opts.PageSize - 1) / opts.PageSize,
	}, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (service.School, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.School{}, mapError(err)
	}
	return toServiceSchool(rec), nil
}

func (r *PostgresRepository) Create(ctx context.Context, s service.School) (service.School, error) {
	rec, err := r.store.Create(ctx, persistence.CreateSchoolParams{
		Name:      s.Name,
		Code:      s.Code,
		Subdomain: s.Subdomain,
		Namespace: s.Namespace,
		Status:    s.Status,
	})
	if err != nil {
		return service.School{}, mapError(err)
	}
	return toServiceSchool(rec), nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status tenant.Status) (service.School, error) {
	rec, err := r.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return service.School{}, mapError(err)
	}
	return toServiceSchool(rec), nil
}

func (r *PostgresRepository) UpdateRouting(ctx context.Context, id int64, input service.RoutingInput) (service.School, error) {
	rec, err := r.store.UpdateRouting(ctx, id, persistence.RoutingUpdate{
		Subdomain: input.Subdomain,
		Code:      input.Code,
	})
	if err != nil {
		return service.School{}, mapError(err)
	}
	return toServiceSchool(rec), nil
}

func toServiceSchool(rec persistence.SchoolRecord) service.School {
	return service.School{School: rec.School(), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrSchoolConflict):
		return service.ErrConflict
	default:
		return err
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
