package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/models"
)

type fixedSessions struct {
	sess models.Session
	ok   bool
}

func (f fixedSessions) Current() (models.Session, bool) { return f.sess, f.ok }

func deploymentFor(t *testing.T, baseURL, shape string, requireMember bool) *catalog.Deployment {
	t.Helper()
	def := fmt.Sprintf(`name: test
tenant_id: tenant-from-config
base_url: %s
login:
  shape: %s
  require_member_id: %t
operations:
  login: /login
  list-broadcasts: /broadcasts
  mark-broadcast-read: /broadcast-read
  list-members: /members
`, baseURL, shape, requireMember)
	d, err := catalog.Parse([]byte(def))
	require.NoError(t, err)
	return d
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, sessions SessionSource) (*Gateway, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	d := deploymentFor(t, srv.URL, "phone_member", false)
	return New(d, sessions, Options{Timeout: 2 * time.Second}), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPerformUnknownOperationFailsBeforeNetwork(t *testing.T) {
	gw, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}, fixedSessions{})

	err := gw.Perform(context.Background(), catalog.Operation("nonexistent-op"), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	err = gw.Perform(context.Background(), catalog.OpSubmitOpinion, map[string]string{"opinion": "x"}, nil)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Equal(t, int32(0), hits.Load())
}

func TestLoginWithEmptyMemberIDWhenOptional(t *testing.T) {
	var got map[string]any
	gw, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get(TenantHeader))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   "upstream-token",
			"member":  map[string]any{"id": 17, "name": "Wanjiku", "phone": "2547000000", "role": "member"},
		})
	}, fixedSessions{})

	sess, err := gw.Login(context.Background(), models.Credentials{Identity: "2547000000"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, map[string]any{"phone": "2547000000"}, got)
	assert.Equal(t, "2547000000", sess.Identity)
	assert.Equal(t, "Wanjiku", sess.DisplayName)
	assert.Equal(t, "tenant-from-config", sess.TenantID)
	assert.Equal(t, "17", sess.MemberID)
	assert.Equal(t, "upstream-token", sess.Token)
	assert.Equal(t, models.RoleMember, sess.Role)
	assert.False(t, sess.IssuedAt.IsZero())
}

func TestLoginRequiresSecondaryForEmailShape(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "a@b.co", body["email"])
		assert.Equal(t, "B12", body["apartment_id"])
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": map[string]any{"email": "a@b.co", "role": "admin", "tenant_id": 4}})
	}))
	defer srv.Close()
	gw := New(deploymentFor(t, srv.URL, "email_apartment", true), fixedSessions{}, Options{})

	_, err := gw.Login(context.Background(), models.Credentials{Identity: "a@b.co"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(0), hits.Load())

	sess, err := gw.Login(context.Background(), models.Credentials{Identity: "a@b.co", Secondary: "B12"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, sess.Role)
	assert.Equal(t, "4", sess.TenantID)
}

func TestLoginRejectionsBecomeAuthErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"success false": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Invalid credentials"})
		},
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		},
		"unknown tenant": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Invalid credentials"})
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			gw, _ := newTestGateway(t, h, fixedSessions{})
			_, err := gw.Login(context.Background(), models.Credentials{Identity: "2547000000"})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrAuth)
			assert.Equal(t, "Invalid credentials", apperr.Message(err))
		})
	}
}

func TestPerformAttachesSessionContext(t *testing.T) {
	sessions := fixedSessions{ok: true, sess: models.Session{Identity: "x", TenantID: "t-9", Token: "tok"}}
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "t-9", r.Header.Get(TenantHeader))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Equal(t, "unread", r.URL.Query().Get("filter"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "Water"}})
	}, sessions)

	items, err := Do[[]models.BroadcastItem](context.Background(), gw, catalog.OpListBroadcasts,
		map[string]any{"filter": "unread", "limit": 3, "skip": nil})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.BroadcastID("1"), items[0].ID)
}

func TestReloginSendsNoPreviousSessionContext(t *testing.T) {
	sessions := fixedSessions{ok: true, sess: models.Session{Identity: "a", TenantID: "t-9", Token: "token-of-a"}}
	headers := make(chan http.Header, 1)
	gw, hits := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "token-of-b"})
	}, sessions)

	sess, err := gw.Login(context.Background(), models.Credentials{Identity: "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	got := <-headers
	assert.Empty(t, got.Get(TenantHeader))
	assert.Empty(t, got.Get("Authorization"))
	assert.NotEmpty(t, got.Get(RequestIDHeader))
	assert.Equal(t, "token-of-b", sess.Token)
}

func TestPerformClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status  int
		body    any
		target  error
		message string
	}{
		{http.StatusUnauthorized, nil, apperr.ErrAuth, ""},
		{http.StatusForbidden, nil, apperr.ErrAuth, ""},
		{http.StatusNotFound, nil, apperr.ErrNotFound, ""},
		{http.StatusUnprocessableEntity, map[string]string{"message": "Amount too small"}, apperr.ErrValidation, "Amount too small"},
		{http.StatusBadRequest, map[string]string{"error": "missing phone"}, apperr.ErrValidation, "missing phone"},
		{http.StatusInternalServerError, nil, apperr.ErrServer, ""},
		{http.StatusBadGateway, nil, apperr.ErrServer, ""},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}, fixedSessions{})
			err := gw.Perform(context.Background(), catalog.OpMarkBroadcastRead, map[string]string{"broadcastId": "1"}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			var e *apperr.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tc.status, e.Status)
			if tc.message != "" {
				assert.Equal(t, tc.message, apperr.Message(err))
			}
		})
	}
}

func TestPerformTransportFailuresAreNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	gw := New(deploymentFor(t, base, "phone_member", false), fixedSessions{}, Options{Timeout: time.Second})
	err := gw.Perform(context.Background(), catalog.OpListMembers, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrNetwork)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	gw = New(deploymentFor(t, slow.URL, "phone_member", false), fixedSessions{}, Options{Timeout: 50 * time.Millisecond})
	err = gw.Perform(context.Background(), catalog.OpListMembers, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.True(t, kind.Retryable())
}

func TestPerformUnwrapsEnvelopes(t *testing.T) {
	reply := map[string]any{"success": true, "data": []map[string]any{{"id": "a", "name": "Phase 1"}}}
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reply)
	}, fixedSessions{})

	var out []map[string]string
	require.NoError(t, gw.Perform(context.Background(), catalog.OpListMembers, nil, &out))
	assert.Equal(t, []map[string]string{{"id": "a", "name": "Phase 1"}}, out)

	reply = map[string]any{"success": false, "message": "Tenant suspended"}
	err := gw.Perform(context.Background(), catalog.OpListMembers, nil, &out)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Tenant suspended", apperr.Message(err))
}

func TestPerformIgnoresEmptyBodies(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, fixedSessions{})
	var out map[string]any
	require.NoError(t, gw.Perform(context.Background(), catalog.OpMarkBroadcastRead, map[string]string{"broadcastId": "1"}, &out))
	assert.Nil(t, out)
}

func TestReissue(t *testing.T) {
	calls := 0
	err := Reissue(context.Background(), catalog.OpMarkBroadcastRead, 3, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Zero(t, calls)

	err = Reissue(context.Background(), catalog.OpListBroadcasts, 3, func(context.Context) error {
		calls++
		if calls < 2 {
			return apperr.Wrap(apperr.KindNetwork, "list-broadcasts", errors.New("reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = Reissue(context.Background(), catalog.OpListBroadcasts, 3, func(context.Context) error {
		calls++
		return apperr.New(apperr.KindValidation, "list-broadcasts", "bad filter")
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 1, calls)
}
