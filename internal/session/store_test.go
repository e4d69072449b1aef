package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/auth"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/storage"
	"github.com/hongminglow/portal-gateway/internal/storage/memory"
)

type authFunc func(ctx context.Context, creds models.Credentials) (models.Session, error)

func (f authFunc) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	return f(ctx, creds)
}

func acceptAll(tenant string) authFunc {
	return func(_ context.Context, creds models.Credentials) (models.Session, error) {
		return models.Session{Identity: creds.Identity, DisplayName: "Member " + creds.Identity, Role: models.RoleMember, TenantID: tenant}, nil
	}
}

type failingRecords struct {
	*memory.Store
	saveErr error
}

func (f failingRecords) Save(context.Context, string, string) error { return f.saveErr }

func newTestStore(t *testing.T, records storage.SessionRecords) *Store {
	t.Helper()
	sealer, err := auth.NewSealer("test-secret", "carekenya", 0)
	require.NoError(t, err)
	return NewStore(records, sealer, "carekenya", zap.NewNop())
}

func TestEstablishWithEmptySecondaryPersistsSession(t *testing.T) {
	records := memory.New()
	st := newTestStore(t, records)

	_, ok := st.Current()
	require.False(t, ok)

	sess, err := st.Establish(context.Background(), acceptAll("carekenya"), models.Credentials{Identity: "2547000000"})
	require.NoError(t, err)
	assert.Equal(t, "2547000000", sess.Identity)
	assert.False(t, sess.IssuedAt.IsZero())

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, sess, cur)

	_, err = records.Load(context.Background(), storage.SessionKey("carekenya"))
	assert.NoError(t, err)
}

func TestEstablishFailureStoresNothing(t *testing.T) {
	records := memory.New()
	st := newTestStore(t, records)

	reject := authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		return models.Session{}, apperr.New(apperr.KindAuth, "login", "Invalid phone number or member ID")
	})
	_, err := st.Establish(context.Background(), reject, models.Credentials{Identity: "0700", Secondary: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, "Invalid phone number or member ID", apperr.Message(err))

	_, ok := st.Current()
	assert.False(t, ok)
	_, err = records.Load(context.Background(), storage.SessionKey("carekenya"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEstablishClassifiesUnknownFailuresAsAuth(t *testing.T) {
	st := newTestStore(t, memory.New())
	_, err := st.Establish(context.Background(), authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		return models.Session{}, errors.New("unknown tenant")
	}), models.Credentials{Identity: "a"})
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestEstablishDoesNotReplaceExistingSessionOnFailure(t *testing.T) {
	st := newTestStore(t, memory.New())
	first, err := st.Establish(context.Background(), acceptAll("carekenya"), models.Credentials{Identity: "first"})
	require.NoError(t, err)

	_, err = st.Establish(context.Background(), authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		return models.Session{}, apperr.New(apperr.KindAuth, "login", "invalid credentials")
	}), models.Credentials{Identity: "second"})
	require.Error(t, err)

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, first, cur)
}

func TestEstablishPersistFailureLeavesMemoryUntouched(t *testing.T) {
	st := newTestStore(t, failingRecords{Store: memory.New(), saveErr: errors.New("disk full")})

	_, err := st.Establish(context.Background(), acceptAll("carekenya"), models.Credentials{Identity: "a"})
	require.Error(t, err)
	_, ok := st.Current()
	assert.False(t, ok)
}

func TestStaleLoginResponseIsDiscarded(t *testing.T) {
	st := newTestStore(t, memory.New())

	release := make(chan struct{})
	started := make(chan struct{})
	slow := authFunc(func(ctx context.Context, creds models.Credentials) (models.Session, error) {
		close(started)
		<-release
		return models.Session{Identity: creds.Identity, TenantID: "carekenya"}, nil
	})

	type result struct {
		sess models.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := st.Establish(context.Background(), slow, models.Credentials{Identity: "old"})
		done <- result{s, err}
	}()
	<-started

	newer, err := st.Establish(context.Background(), acceptAll("carekenya"), models.Credentials{Identity: "new"})
	require.NoError(t, err)
	close(release)

	res := <-done
	assert.ErrorIs(t, res.err, ErrStaleLogin)

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, newer, cur)
	assert.Equal(t, "new", cur.Identity)
}

func TestClearIsIdempotentAndInvalidatesInFlightLogin(t *testing.T) {
	records := memory.New()
	st := newTestStore(t, records)
	ctx := context.Background()

	require.NoError(t, st.Clear(ctx))

	_, err := st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "a"})
	require.NoError(t, err)
	require.NoError(t, st.Clear(ctx))
	require.NoError(t, st.Clear(ctx))

	_, ok := st.Current()
	assert.False(t, ok)
	_, err = records.Load(ctx, storage.SessionKey("carekenya"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := st.Establish(ctx, authFunc(func(_ context.Context, creds models.Credentials) (models.Session, error) {
			close(started)
			<-release
			return models.Session{Identity: creds.Identity}, nil
		}), models.Credentials{Identity: "late"})
		done <- err
	}()
	<-started
	require.NoError(t, st.Clear(ctx))
	close(release)
	assert.ErrorIs(t, <-done, ErrStaleLogin)
	_, ok = st.Current()
	assert.False(t, ok)
}

func TestRestoreSurvivesProcessRestart(t *testing.T) {
	records := memory.New()
	ctx := context.Background()

	first := newTestStore(t, records)
	sess, err := first.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "2547000000"})
	require.NoError(t, err)

	second := newTestStore(t, records)
	require.NoError(t, second.Restore(ctx))
	cur, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, sess.Identity, cur.Identity)
	assert.Equal(t, sess.TenantID, cur.TenantID)
	assert.Equal(t, sess.IssuedAt.Truncate(time.Second), cur.IssuedAt)
}

func TestRestoreLogsRestoredIdentityOnce(t *testing.T) {
	records := memory.New()
	ctx := context.Background()
	_, err := newTestStore(t, records).Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "2547000000"})
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	sealer, err := auth.NewSealer("test-secret", "carekenya", 0)
	require.NoError(t, err)
	st := NewStore(records, sealer, "carekenya", zap.New(core))
	require.NoError(t, st.Restore(ctx))

	restored := logs.FilterMessage("session restored").All()
	require.Len(t, restored, 1)
	assert.Equal(t, "2547000000", restored[0].ContextMap()["identity"])
}

func TestRestoreDiscardsTamperedRecord(t *testing.T) {
	records := memory.New()
	ctx := context.Background()
	require.NoError(t, records.Save(ctx, storage.SessionKey("carekenya"), "forged.token.value"))

	st := newTestStore(t, records)
	require.NoError(t, st.Restore(ctx))
	_, ok := st.Current()
	assert.False(t, ok)

	_, err := records.Load(ctx, storage.SessionKey("carekenya"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplyProfileReplacesSessionValue(t *testing.T) {
	st := newTestStore(t, memory.New())
	ctx := context.Background()

	_, gen, _ := st.Snapshot()
	_, err := st.ApplyProfile(ctx, gen, models.Profile{DisplayName: "x"})
	assert.ErrorIs(t, err, ErrNoSession)

	before, err := st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "a"})
	require.NoError(t, err)

	_, gen, ok := st.Snapshot()
	require.True(t, ok)
	after, err := st.ApplyProfile(ctx, gen, models.Profile{DisplayName: "Amina"})
	require.NoError(t, err)
	assert.Equal(t, "Amina", after.DisplayName)
	assert.Equal(t, "Member a", before.DisplayName, "earlier snapshot is not mutated")

	cur, curGen, _ := st.Snapshot()
	assert.Equal(t, after, cur)
	assert.Equal(t, gen, curGen, "a profile merge keeps the generation")
}

func TestApplyProfileForReplacedSessionIsDropped(t *testing.T) {
	records := memory.New()
	st := newTestStore(t, records)
	ctx := context.Background()

	_, err := st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "a"})
	require.NoError(t, err)
	_, genA, _ := st.Snapshot()

	b, err := st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "b"})
	require.NoError(t, err)

	_, err = st.ApplyProfile(ctx, genA, models.Profile{DisplayName: "Admin A", Role: "admin"})
	assert.ErrorIs(t, err, ErrSessionChanged)

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, b, cur)
	assert.Equal(t, models.RoleMember, cur.Role)

	restarted := newTestStore(t, records)
	require.NoError(t, restarted.Restore(ctx))
	persisted, ok := restarted.Current()
	require.True(t, ok)
	assert.Equal(t, "Member b", persisted.DisplayName)
	assert.Equal(t, models.RoleMember, persisted.Role)
}

func TestClearGenerationOnlyClearsThatSession(t *testing.T) {
	records := memory.New()
	st := newTestStore(t, records)
	ctx := context.Background()

	_, err := st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "a"})
	require.NoError(t, err)
	_, genA, _ := st.Snapshot()
	_, err = st.Establish(ctx, acceptAll("carekenya"), models.Credentials{Identity: "b"})
	require.NoError(t, err)

	cleared, err := st.ClearGeneration(ctx, genA)
	require.NoError(t, err)
	assert.False(t, cleared)
	cur, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Identity)

	_, genB, _ := st.Snapshot()
	cleared, err = st.ClearGeneration(ctx, genB)
	require.NoError(t, err)
	assert.True(t, cleared)
	_, ok = st.Current()
	assert.False(t, ok)
	_, err = records.Load(ctx, storage.SessionKey("carekenya"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cleared, err = st.ClearGeneration(ctx, genB)
	require.NoError(t, err)
	assert.False(t, cleared)
}
