package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// Repository defines the persistence operations required by the users service.
// Every call reads or writes the users table of the school bound to ctx.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error)
	List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.User, error)
}

type postgresRepository struct {
	store *persistence.UserStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.UserStore) Repository {
	if store == nil {
		panic("user store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
	if err := requireSchool(ctx); err != nil {
		return persistence.ListUsersResult{}, err
	}
	return r.store.ListUsers(ctx, params)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
	if err := requireSchool(ctx); err != nil {
		return persistence.User{}, err
	}
	return r.store.CreateUser(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	if err := requireSchool(ctx); err != nil {
		return persistence.User{}, err
	}
	return r.store.GetUser(ctx, id)
}

// requireSchool refuses to touch school tables from a shared scope. Without this a
// platform admin request would run against the shared schema's search_path.
func requireSchool(ctx context.Context) error {
	scope, ok := tenant.FromContext(ctx)
	if !ok || scope.IsShared() {
		return tenant.ErrMissingTenantContext
	}
	return nil
}
