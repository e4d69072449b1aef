package gateway

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
)

// Login verifies creds with the deployment's login operation and builds the
// resulting Session. It satisfies session.Authenticator.
func (g *Gateway) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	op := string(catalog.OpLogin)
	policy := g.deployment.Login
	idField, secondaryField := policy.Fields()

	if creds.Identity == "" {
		return models.Session{}, apperr.New(apperr.KindValidation, op, "Please enter your "+idField+".")
	}
	if creds.Secondary == "" && policy.RequiresSecondary() {
		return models.Session{}, apperr.New(apperr.KindValidation, op, "Please enter your "+secondaryField+".")
	}

	body := map[string]string{idField: creds.Identity}
	if creds.Secondary != "" {
		body[secondaryField] = creds.Secondary
	}

	var reply dto.BackendLoginReply
	if err := g.Perform(ctx, catalog.OpLogin, body, &reply); err != nil {
		return models.Session{}, loginFailure(err)
	}

	issued := time.Now().UTC()
	member := reply.Identity()
	if member == nil {
		member = &dto.BackendMember{}
	}
	sess := member.SessionFrom(creds.Identity, g.deployment.TenantID, reply.Token, issued)
	if sess.MemberID == "" && secondaryField == "member_id" {
		sess.MemberID = creds.Secondary
	}
	g.logger.Info("login accepted",
		zap.String("deployment", g.deployment.Name),
		zap.String("tenant", sess.TenantID),
		zap.String("role", string(sess.Role)),
	)
	return sess, nil
}

// loginFailure turns rejections of the login call into auth failures while
// leaving transport and server errors classified as they are.
func loginFailure(err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return apperr.Wrap(apperr.KindAuth, string(catalog.OpLogin), err)
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindNotFound:
		msg := e.Message
		if msg == "" {
			msg = "Invalid credentials."
		}
		return &apperr.Error{Kind: apperr.KindAuth, Op: e.Op, Status: e.Status, Message: msg, Err: e.Err}
	}
	return err
}
