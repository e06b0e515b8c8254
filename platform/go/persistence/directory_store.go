package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// SchoolsTable is the directory table in the shared namespace.
const SchoolsTable = "schools"

const schoolColumns = "school_id, name, code, subdomain, namespace, status, created_at, updated_at"

// ErrSchoolConflict indicates a code, subdomain or namespace already in use.
var ErrSchoolConflict = errors.New("school conflict")

// SchoolRecord is a row of the directory table.
type SchoolRecord struct {
	SchoolID  int64     `db:"school_id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	Subdomain string    `db:"subdomain"`
	Namespace string    `db:"namespace"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// School converts the row into the tenant model.
func (r SchoolRecord) School() tenant.School {
	return tenant.School{
		ID:        r.SchoolID,
		Name:      r.Name,
		Code:      r.Code,
		Subdomain: r.Subdomain,
		Namespace: r.Namespace,
		Status:    tenant.Status(r.Status),
	}
}

// DirectoryStore reads and mutates the school directory. Every statement runs
// against the shared namespace regardless of the caller's scope.
type DirectoryStore struct {
	exec *ScopedExecutor
}

func NewDirectoryStore(exec *ScopedExecutor) *DirectoryStore {
	if exec == nil {
		panic("DirectoryStore requires executor")
	}
	return &DirectoryStore{exec: exec}
}

// Lookup finds the school matching key. Schools of every status are returned;
// callers decide what a non-active school means for them. A key with no match
// yields a *tenant.LookupError wrapping tenant.ErrTenantNotFound.
func (s *DirectoryStore) Lookup(ctx context.Context, kind tenant.LookupKind, key string) (tenant.School, error) {
	normalized, err := tenant.NormalizeKey(kind, key)
	if err != nil {
		return tenant.School{}, tenant.NotFound(kind, key)
	}

	var where string
	var arg any
	switch kind {
	case tenant.BySubdomain:
		where, arg = "lower(subdomain) = $1", normalized
	case tenant.ByCode:
		where, arg = "lower(code) = $1", normalized
	case tenant.ByID:
		id, _ := strconv.ParseInt(normalized, 10, 64)
		where, arg = "school_id = $1", id
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", schoolColumns, SchoolsTable, where)
	rec, err := CollectOne[SchoolRecord](ForShared(ctx), s.exec, query, arg)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return tenant.School{}, tenant.NotFound(kind, normalized)
		}
		return tenant.School{}, err
	}
	return rec.School(), nil
}

// Get returns a school by id.
func (s *DirectoryStore) Get(ctx context.Context, id int64) (SchoolRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE school_id = $1", schoolColumns, SchoolsTable)
	rec, err := CollectOne[SchoolRecord](ForShared(ctx), s.exec, query, id)
	if errors.Is(err, ErrRowNotFound) {
		return SchoolRecord{}, tenant.NotFound(tenant.ByID, strconv.FormatInt(id, 10))
	}
	return rec, err
}

// ListSchoolsParams filters and paginates List.
type ListSchoolsParams struct {
	Status   *tenant.Status
	Page     int
	PageSize int
}

// ListSchoolsResult includes the page and the total count for pagination metadata.
type ListSchoolsResult struct {
	Schools    []SchoolRecord
	TotalItems int
}

// List returns directory rows ordered by id.
func (s *DirectoryStore) List(ctx context.Context, params ListSchoolsParams) (ListSchoolsResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	ctx = ForShared(ctx)
	where := "1=1"
	var args []any
	if params.Status != nil {
		args = append(args, string(*params.Status))
		where = fmt.Sprintf("status = $%d", len(args))
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", SchoolsTable, where)
	if err := s.exec.QueryOne(ctx, func(row pgx.Row) error { return row.Scan(&total) }, countQuery, args...); err != nil {
		return ListSchoolsResult{}, fmt.Errorf("count schools: %w", err)
	}

	result := ListSchoolsResult{Schools: []SchoolRecord{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY school_id LIMIT $%d OFFSET $%d",
		schoolColumns, SchoolsTable, where, len(args)-1, len(args))

	rows, err := CollectMany[SchoolRecord](ctx, s.exec, query, args...)
	if err != nil {
		return ListSchoolsResult{}, fmt.Errorf("list schools: %w", err)
	}
	if rows != nil {
		result.Schools = rows
	}
	return result, nil
}

// CreateSchoolParams captures the fields of a new directory row.
type CreateSchoolParams struct {
	Name      string
	Code      string
	Subdomain string
	Namespace string
	Status    tenant.Status
}

// Create inserts a directory row. The namespace is validated here and never changes afterwards.
func (s *DirectoryStore) Create(ctx context.Context, params CreateSchoolParams) (SchoolRecord, error) {
	if err := tenant.ValidateNamespace(params.Namespace); err != nil {
		return SchoolRecord{}, err
	}
	if params.Status == "" {
		params.Status = tenant.StatusProvisioning
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (name, code, subdomain, namespace, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING %s
    `, SchoolsTable, schoolColumns)

	rec, err := CollectOne[SchoolRecord](ForShared(ctx), s.exec, query,
		strings.TrimSpace(params.Name),
		strings.ToLower(strings.TrimSpace(params.Code)),
		strings.ToLower(strings.TrimSpace(params.Subdomain)),
		params.Namespace,
		string(params.Status),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return SchoolRecord{}, ErrSchoolConflict
		}
		return SchoolRecord{}, err
	}
	return rec, nil
}

// UpdateStatus sets the lifecycle status of a school.
func (s *DirectoryStore) UpdateStatus(ctx context.Context, id int64, status tenant.Status) (SchoolRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET status = $1, updated_at = NOW()
        WHERE school_id = $2
        RETURNING %s
    `, SchoolsTable, schoolColumns)

	rec, err := CollectOne[SchoolRecord](ForShared(ctx), s.exec, query, string(status), id)
	if errors.Is(err, ErrRowNotFound) {
		return SchoolRecord{}, tenant.NotFound(tenant.ByID, strconv.FormatInt(id, 10))
	}
	return rec, err
}

// RoutingUpdate changes the keys a school is resolved by. Nil fields are left as is.
type RoutingUpdate struct {
	Subdomain *string
	Code      *string
}

// UpdateRouting changes a school's subdomain and/or code. The namespace is not
// part of the update surface.
func (s *DirectoryStore) UpdateRouting(ctx context.Context, id int64, update RoutingUpdate) (SchoolRecord, error) {
	setParts := []string{}
	var args []any

	if update.Subdomain != nil {
		args = append(args, strings.ToLower(strings.TrimSpace(*update.Subdomain)))
		setParts = append(setParts, fmt.Sprintf("subdomain = $%d", len(args)))
	}
	if update.Code != nil {
		args = append(args, strings.ToLower(strings.TrimSpace(*update.Code)))
		setParts = append(setParts, fmt.Sprintf("code = $%d", len(args)))
	}
	if len(setParts) == 0 {
		return SchoolRecord{}, errors.New("no routing fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE school_id = $%d
        RETURNING %s
    `, SchoolsTable, strings.Join(setParts, ", "), len(args), schoolColumns)

	rec, err := CollectOne[SchoolRecord](ForShared(ctx), s.exec, query, args...)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return SchoolRecord{}, tenant.NotFound(tenant.ByID, strconv.FormatInt(id, 10))
		}
		if IsUniqueViolation(err) {
			return SchoolRecord{}, ErrSchoolConflict
		}
		return SchoolRecord{}, err
	}
	return rec, nil
}
