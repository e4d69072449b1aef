// Package portal is the entry point the HTTP views use. It couples the
// session store with the gateway so that an auth failure on any call made
// after login ends the session.
package portal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/broadcast"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/feed"
	"github.com/hongminglow/portal-gateway/internal/gateway"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/session"
)

// Client serves one deployment for one process-wide session.
type Client struct {
	deployment *catalog.Deployment
	gateway    *gateway.Gateway
	sessions   *session.Store
	feed       *feed.Cache
	composer   *broadcast.Composer
	logger     *zap.Logger
	now        func() time.Time
}

// New wires the feed and the composer through the client so they share its
// session-expiry handling.
func New(gw *gateway.Gateway, sessions *session.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		deployment: gw.Deployment(),
		gateway:    gw,
		sessions:   sessions,
		logger:     logger.Named("portal"),
		now:        time.Now,
	}
	c.feed = feed.New(c, sessions, c.deployment.Broadcasts, logger)
	c.composer = broadcast.NewComposer(c, sessions, c.deployment, logger)
	return c
}

func (c *Client) Deployment() *catalog.Deployment { return c.deployment }
func (c *Client) Feed() *feed.Cache { return c.feed }
func (c *Client) Composer() *broadcast.Composer { return c.composer }

// Current returns the current session without I/O.
func (c *Client) Current() (models.Session, bool) { return c.sessions.Current() }

// Login establishes a session. The feed of any previous identity is dropped.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	sess, err := c.sessions.Establish(ctx, c.gateway, creds)
	if err != nil {
		return models.Session{}, err
	}
	c.feed.Reset()
	return sess, nil
}

// Logout clears the session and everything cached for it.
func (c *Client) Logout(ctx context.Context) error {
	c.feed.Reset()
	return c.sessions.Clear(ctx)
}

// Perform forwards to the gateway. An auth failure ends the session the
// call was made under; a session established meanwhile is kept.
func (c *Client) Perform(ctx context.Context, op catalog.Operation, payload, out any) error {
	_, gen, _ := c.sessions.Snapshot()
	err := c.gateway.Perform(ctx, op, payload, out)
	if err != nil && op != catalog.OpLogin && gateway.IsAuthFailure(err) {
		cleared, clearErr := c.sessions.ClearGeneration(ctx, gen)
		if cleared {
			c.logger.Info("session rejected by backend; signing out", zap.String("op", string(op)))
			c.feed.Reset()
		}
		if clearErr != nil {
			c.logger.Warn("clear rejected session", zap.Error(clearErr))
		}
	}
	return err
}

// RefreshProfile merges the server profile into the session when the
// deployment exposes get-profile. A profile that arrives after the session
// was replaced is dropped.
func (c *Client) RefreshProfile(ctx context.Context) (models.Session, error) {
	sess, gen, ok := c.sessions.Snapshot()
	if !ok {
		return models.Session{}, session.ErrNoSession
	}
	if !c.deployment.Catalog.Has(catalog.OpGetProfile) {
		return sess, nil
	}
	payload := map[string]string{"memberId": sess.MemberID}
	p, err := gateway.Do[models.Profile](ctx, c, catalog.OpGetProfile, payload)
	if err != nil {
		return models.Session{}, err
	}
	return c.sessions.ApplyProfile(ctx, gen, p)
}
