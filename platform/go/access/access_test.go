package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/schoolspace/platform/go/auth"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

type fakeMembers struct {
	members map[string][]int64
	err     error
	calls   int
}

func (f *fakeMembers) IsMember(_ context.Context, userID string, schoolID int64) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.members[userID] {
		if id == schoolID {
			return true, nil
		}
	}
	return false, nil
}

func ptr[T any](v T) *T { return &v }

var oakScope = tenant.Scope{SchoolID: 12, Code: "oak", Namespace: "school_oak"}

func TestVerify(t *testing.T) {
	cases := []struct {
		name    string
		creds   *auth.UserCredentials
		scope   tenant.Scope
		wantErr error
		lookups int
	}{
		{name: "member", creds: &auth.UserCredentials{Id: "alice"}, scope: oakScope, lookups: 1},
		{name: "primary school fallback", creds: &auth.UserCredentials{Id: "bob", PrimarySchoolID: ptr(int64(12))}, scope: oakScope, lookups: 1},
		{name: "session school fallback", creds: &auth.UserCredentials{Id: "bob", SchoolID: ptr(int64(12)), SchoolNamespace: ptr("school_oak")}, scope: oakScope, lookups: 1},
		{name: "stranger", creds: &auth.UserCredentials{Id: "mallory", PrimarySchoolID: ptr(int64(11))}, scope: oakScope, wantErr: tenant.ErrAccessDenied, lookups: 1},
		{name: "anonymous", scope: oakScope, wantErr: tenant.ErrAccessDenied},
		{name: "bypass scope", creds: &auth.UserCredentials{Id: "ops"}, scope: tenant.Scope{Bypass: true, SchoolID: 12, Namespace: "school_oak"}},
		{name: "platform admin", creds: &auth.UserCredentials{Id: "ops", IsPlatformAdmin: true}, scope: oakScope},
		{name: "shared scope", creds: &auth.UserCredentials{Id: "mallory"}, scope: tenant.SharedScope()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			members := &fakeMembers{members: map[string][]int64{"alice": {11, 12}}}
			v := NewVerifier(members, zaptest.NewLogger(t))

			err := v.Verify(context.Background(), tc.creds, tc.scope)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.lookups, members.calls)
		})
	}
}

func TestVerifyPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("store down")
	v := NewVerifier(&fakeMembers{err: boom}, zaptest.NewLogger(t))

	err := v.Verify(context.Background(), &auth.UserCredentials{Id: "alice", PrimarySchoolID: ptr(int64(12))}, oakScope)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, tenant.ErrAccessDenied)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(&fakeMembers{members: map[string][]int64{"alice": {12}}}, zaptest.NewLogger(t))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(v)(next)

	serve := func(creds *auth.UserCredentials, scope *tenant.Scope) int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		ctx := r.Context()
		if creds != nil {
			ctx = auth.WithUser(ctx, creds)
		}
		if scope != nil {
			ctx = tenant.WithScope(ctx, *scope)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r.WithContext(ctx))
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, serve(&auth.UserCredentials{Id: "alice"}, &oakScope))
	require.Equal(t, http.StatusForbidden, serve(&auth.UserCredentials{Id: "mallory"}, &oakScope))
	require.Equal(t, http.StatusBadRequest, serve(&auth.UserCredentials{Id: "alice"}, nil))
}
