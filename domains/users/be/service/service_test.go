package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

type mockRepository struct {
	createFn func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error)
	listFn   func(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error)
	getFn    func(ctx context.Context, id uuid.UUID) (persistence.User, error)
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) List(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, params)
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (persistence.User, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func TestServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.Create(context.Background(), CreateInput{})
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "email")
	require.Contains(t, validationErr.Fields, "fullName")
}

func TestServiceCreateSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	repository := &mockRepository{}

	repository.createFn = func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
		require.NotEqual(t, uuid.Nil, params.UserID)
		require.Equal(t, "admin@example.com", params.Email)
		require.Equal(t, "Admin", params.FullName)

		return persistence.User{
			UserID:    params.UserID,
			Email:     params.Email,
			FullName:  params.FullName,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}

	svc := New(repository)

	user, err := svc.Create(context.Background(), CreateInput{
		Email:    "  Admin@example.com ",
		FullName: " Admin ",
	})
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", user.Email)
	require.Equal(t, "Admin", user.FullName)
}

func TestServiceListSuccess(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	now := time.Now().UTC()
	userID := uuid.New()

	repository.listFn = func(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
		require.Equal(t, 2, params.Page)
		require.Equal(t, 10, params.PageSize)
		require.NotNil(t, params.Sort)
		require.Equal(t, "createdAt", *params.Sort)
		require.NotNil(t, params.Email)
		require.Equal(t, "admin@example.com", *params.Email)

		return persistence.ListUsersResult{
			Users: []persistence.User{{
				UserID:    userID,
				Email:     "admin@example.com",
				FullName:  "Admin",
				CreatedAt: now,
				UpdatedAt: now,
			}},
			TotalItems: 15,
		}, nil
	}

	svc := New(repository)

	sort := "createdAt"
	result, err := svc.List(context.Background(), ListOptions{
		Page:     2,
		PageSize: 10,
		Sort:     &sort,
		Email:    ptrString(" admin@example.com "),
	})

	require.NoError(t, err)
	require.Equal(t, 2, result.Page)
	require.Equal(t, 10, result.PageSize)
	require.Equal(t, 15, result.TotalItems)
	require.Equal(t, 2, result.TotalPages)
	require.Len(t, result.Users, 1)
	require.Equal(t, userID, result.Users[0].ID)
	require.Equal(t, "Admin", result.Users[0].FullName)
}

func TestServiceListInvalidSort(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{listFn: func(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
		return persistence.ListUsersResult{}, nil
	}})

	sort := "-invalid"
	_, err := svc.List(context.Background(), ListOptions{Sort: &sort})
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "sort")
}

func TestServiceGet(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := New(&mockRepository{getFn: func(ctx context.Context, got uuid.UUID) (persistence.User, error) {
		if got != id {
			return persistence.User{}, persistence.ErrUserNotFound
		}
		return persistence.User{UserID: id, Email: "a@example.com", FullName: "A"}, nil
	}})

	user, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", user.Email)

	_, err = svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateConflict(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{createFn: func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
		return persistence.User{}, persistence.ErrUserConflict
	}})

	_, err := svc.Create(context.Background(), CreateInput{Email: "a@example.com", FullName: "A"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestServicePassesTenantErrorsThrough(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{listFn: func(ctx context.Context, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
		return persistence.ListUsersResult{}, tenant.ErrPoolExhausted
	}})

	_, err := svc.List(context.Background(), ListOptions{})
	require.ErrorIs(t, err, tenant.ErrPoolExhausted)
}

func ptrString(v string) *string {
	s := v
	return &s
}
