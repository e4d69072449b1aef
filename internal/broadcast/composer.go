// Package broadcast implements the admin authoring flow: loading audience
// targets and validating and sending a new broadcast.
package broadcast

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/gateway"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
)

const opCreate = string(catalog.OpCreateBroadcast)

// SessionSource exposes the current session without I/O.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Draft is what the authoring form submits.
type Draft struct {
	Title     string                `json:"title"`
	Content   string                `json:"content"`
	Category  string                `json:"category,omitempty"`
	Speaker   string                `json:"speaker,omitempty"`
	Scope     models.RecipientScope `json:"scope"`
	Anonymous bool                  `json:"anonymous"`
}

// Targets lists the audiences the deployment can address.
type Targets struct {
	Options []models.ScopeKind `json:"options"`
	Phases  []dto.Target       `json:"phases"`
	Blocks  []dto.Target       `json:"blocks"`
}

// Composer validates and sends broadcasts for one deployment.
type Composer struct {
	performer  gateway.Performer
	sessions   SessionSource
	deployment *catalog.Deployment
	logger     *zap.Logger
}

func NewComposer(performer gateway.Performer, sessions SessionSource, deployment *catalog.Deployment, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{performer: performer, sessions: sessions, deployment: deployment, logger: logger.Named("broadcast")}
}

// Targets loads phases and blocks concurrently. Lists the catalog does not
// offer are left empty.
func (c *Composer) Targets(ctx context.Context) (Targets, error) {
	out := Targets{
		Options: c.deployment.Broadcasts.RecipientOptions,
		Phases:  []dto.Target{},
		Blocks:  []dto.Target{},
	}
	g, gctx := errgroup.WithContext(ctx)
	if c.deployment.Broadcasts.AllowsScope(models.ScopeKindPhase) && c.deployment.Catalog.Has(catalog.OpListPhases) {
		g.Go(func() error {
			rows, err := gateway.Do[[]dto.Phase](gctx, c.performer, catalog.OpListPhases, nil)
			if err != nil {
				return err
			}
			for _, r := range rows {
				out.Phases = append(out.Phases, dto.Target{ID: dto.Stringify(r.ID), Name: r.PhaseName})
			}
			return nil
		})
	}
	if c.deployment.Broadcasts.AllowsScope(models.ScopeKindBlock) && c.deployment.Catalog.Has(catalog.OpListBlocks) {
		g.Go(func() error {
			rows, err := gateway.Do[[]dto.Block](gctx, c.performer, catalog.OpListBlocks, nil)
			if err != nil {
				return err
			}
			for _, r := range rows {
				out.Blocks = append(out.Blocks, dto.Target{ID: dto.Stringify(r.ID), Name: r.BlockName})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Targets{}, err
	}
	return out, nil
}

// Validate checks d against the signed-in role and the deployment policy.
func (c *Composer) Validate(d Draft) error {
	sess, ok := c.sessions.Current()
	if !ok {
		return apperr.New(apperr.KindAuth, opCreate, "Please sign in again.")
	}
	if !sess.Role.IsAdmin() {
		return apperr.New(apperr.KindValidation, opCreate, "Only administrators can send "+strings.ToLower(c.deployment.Broadcasts.Label)+".")
	}
	policy := c.deployment.Broadcasts
	if strings.TrimSpace(d.Title) == "" {
		return apperr.New(apperr.KindValidation, opCreate, "Title is required.")
	}
	if strings.TrimSpace(d.Content) == "" {
		return apperr.New(apperr.KindValidation, opCreate, "Message is required.")
	}
	if n := utf8.RuneCountInString(d.Content); n > policy.MaxMessageLength {
		return apperr.New(apperr.KindValidation, opCreate, "Message is too long.")
	}
	if d.Anonymous && !policy.AllowAnonymous {
		return apperr.New(apperr.KindValidation, opCreate, "Anonymous messages are not allowed here.")
	}
	if d.Category != "" && len(policy.Categories) > 0 && !contains(policy.Categories, d.Category) {
		return apperr.New(apperr.KindValidation, opCreate, "Unknown category.")
	}
	if err := d.Scope.Validate(); err != nil {
		return apperr.New(apperr.KindValidation, opCreate, err.Error())
	}
	if !policy.AllowsScope(d.Scope.Kind()) {
		return apperr.New(apperr.KindValidation, opCreate, "Recipients of type "+string(d.Scope.Kind())+" are not available.")
	}
	return nil
}

// Send validates d and posts it through create-broadcast.
func (c *Composer) Send(ctx context.Context, d Draft) error {
	if !c.deployment.Catalog.Has(catalog.OpCreateBroadcast) {
		return apperr.Configuration(opCreate, "deployment %q has no %s operation", c.deployment.Name, opCreate)
	}
	if err := c.Validate(d); err != nil {
		return err
	}
	sess, _ := c.sessions.Current()
	req := dto.CreateBroadcastRequest{
		Title:       strings.TrimSpace(d.Title),
		Content:     strings.TrimSpace(d.Content),
		Category:    optional(d.Category),
		Speaker:     optional(d.Speaker),
		Scope:       d.Scope,
		IsAnonymous: d.Anonymous,
		Type:        c.deployment.Broadcasts.Kind,
	}
	if !d.Anonymous {
		req.SenderName = sess.DisplayName
	}
	if err := c.performer.Perform(ctx, catalog.OpCreateBroadcast, req, nil); err != nil {
		return err
	}
	c.logger.Info("broadcast sent",
		zap.String("type", req.Type),
		zap.String("scope", string(d.Scope.Kind())),
		zap.Bool("anonymous", d.Anonymous),
	)
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
