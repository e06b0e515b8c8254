package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/schoolspace/domains/users/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/httperror"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

type mockService struct {
	createFn func(ctx context.Context, input service.CreateInput) (service.User, error)
	listFn   func(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	getFn    func(ctx context.Context, id uuid.UUID) (service.User, error)
}

func (m *mockService) Create(ctx context.Context, input service.CreateInput) (service.User, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, opts)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (service.User, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func serve(t *testing.T, svc service.Service, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route(BasePath, New(svc, zaptest.NewLogger(t)).Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUsersListSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	userID := uuid.New()
	svc := &mockService{listFn: func(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
		require.Equal(t, 2, opts.Page)
		require.Equal(t, 5, opts.PageSize)
		require.Equal(t, "-createdAt", *opts.Sort)
		return service.ListResult{
			Users:      []service.User{{ID: userID, Email: "a@example.com", FullName: "A", CreatedAt: now, UpdatedAt: now}},
			Page:       2,
			PageSize:   5,
			TotalItems: 6,
			TotalPages: 2,
		}, nil
	}}

	rec := serve(t, svc, httptest.NewRequest(http.MethodGet, BasePath+"?page=2&pageSize=5&sort=-createdAt", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list UserList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, userID, list.Items[0].ID)
	require.Equal(t, 6, list.TotalItems)
}

func TestUsersListInvalidPaging(t *testing.T) {
	t.Parallel()

	rec := serve(t, &mockService{}, httptest.NewRequest(http.MethodGet, BasePath+"?page=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var p httperror.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, httperror.CodeValidation, p.Code)
	require.Contains(t, p.Errors, "page")
}

func TestUsersCreate(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{createFn: func(ctx context.Context, input service.CreateInput) (service.User, error) {
		require.Equal(t, "a@example.com", input.Email)
		return service.User{ID: id, Email: input.Email, FullName: input.FullName}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, BasePath, strings.NewReader(`{"email":"a@example.com","fullName":"A"}`))
	rec := serve(t, svc, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, BasePath+"/"+id.String(), rec.Header().Get("Location"))
}

func TestUsersGetErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{"bad id", BasePath + "/not-a-uuid", nil, http.StatusBadRequest, httperror.CodeValidation},
		{"missing", BasePath + "/" + uuid.NewString(), service.ErrNotFound, http.StatusNotFound, httperror.CodeNotFound},
		{"pool exhausted", BasePath + "/" + uuid.NewString(), tenant.ErrPoolExhausted, http.StatusServiceUnavailable, httperror.CodePoolExhausted},
		{"no school", BasePath + "/" + uuid.NewString(), tenant.ErrMissingTenantContext, http.StatusBadRequest, httperror.CodeTenantContextRequired},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockService{getFn: func(ctx context.Context, id uuid.UUID) (service.User, error) {
				return service.User{}, tc.err
			}}
			rec := serve(t, svc, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, tc.status, rec.Code)

			var p httperror.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			require.Equal(t, tc.code, p.Code)
		})
	}
}
