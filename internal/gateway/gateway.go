// Package gateway dispatches logical portal operations to the remote
// automation backend and classifies every outcome.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/models"
)

const (
	// TenantHeader scopes every authenticated call to the session's tenant.
	TenantHeader = "X-Tenant-ID"
	// RequestIDHeader correlates gateway logs with backend executions.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 15 * time.Second
)

// SessionSource exposes the current session without I/O.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Performer is the contract views and caches depend on.
type Performer interface {
	Perform(ctx context.Context, op catalog.Operation, payload, out any) error
}

// Options tunes the transport. Zero values fall back to defaults.
type Options struct {
	Timeout    time.Duration
	Logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
}

// Gateway performs operations of one deployment's catalog.
type Gateway struct {
	deployment *catalog.Deployment
	sessions   SessionSource
	client     *resty.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New builds a gateway. The transport never retries: writes against the
// automation backend are at-most-once.
func New(deployment *catalog.Deployment, sessions SessionSource, opts Options) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New()
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "portal-gateway"
	}
	client.
		SetLogger(logger.Named("resty").Sugar()).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &Gateway{
		deployment: deployment,
		sessions:   sessions,
		client:     client,
		logger:     logger.Named("gateway"),
		tracer:     otel.Tracer("github.com/hongminglow/portal-gateway/internal/gateway"),
	}
}

// Deployment returns the active deployment.
func (g *Gateway) Deployment() *catalog.Deployment { return g.deployment }

// Perform resolves op, attaches tenant and auth context, makes exactly one
// call and decodes a successful body into out (which may be nil). Login
// calls never carry the context of an existing session.
func (g *Gateway) Perform(ctx context.Context, op catalog.Operation, payload, out any) error {
	endpoint, err := g.deployment.Catalog.Resolve(op)
	if err != nil {
		g.logger.Error("operation not in catalog", zap.String("op", string(op)), zap.Error(err))
		return err
	}

	requestID := uuid.NewString()
	ctx, span := g.tracer.Start(ctx, "portal."+string(op), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.operation", string(op)),
		attribute.String("portal.deployment", g.deployment.Name),
		attribute.String("http.request.method", endpoint.Method),
		attribute.String("portal.request_id", requestID),
	)

	req := g.client.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID)
	if sess, ok := g.sessions.Current(); ok && op != catalog.OpLogin {
		if sess.TenantID != "" {
			req.SetHeader(TenantHeader, sess.TenantID)
		}
		if sess.Token != "" {
			req.SetAuthToken(sess.Token)
		}
	}
	if err := attachPayload(req, endpoint.Method, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode payload")
		return apperr.Wrap(apperr.KindValidation, string(op), fmt.Errorf("encode payload: %w", err))
	}

	started := time.Now()
	resp, err := req.Execute(endpoint.Method, endpoint.URL)
	elapsed := time.Since(started)
	fields := []zap.Field{
		zap.String("op", string(op)),
		zap.String("request_id", requestID),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		classified := apperr.Wrap(apperr.KindNetwork, string(op), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		g.logger.Warn("backend call failed", append(fields, zap.Error(err))...)
		return classified
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	fields = append(fields, zap.Int("status", status))
	if status < 200 || status > 299 {
		classified := classify(op, status, resp.Body())
		span.SetStatus(codes.Error, classified.Error())
		g.logger.Warn("backend rejected call", append(fields, zap.String("kind", string(classified.Kind)))...)
		return classified
	}
	if err := decode(op, resp.Body(), out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		g.logger.Warn("backend reply not usable", append(fields, zap.Error(err))...)
		return err
	}
	g.logger.Debug("backend call ok", fields...)
	return nil
}

// Do performs op and decodes the result as T.
func Do[T any](ctx context.Context, p Performer, op catalog.Operation, payload any) (T, error) {
	var out T
	err := p.Perform(ctx, op, payload, &out)
	return out, err
}

// Reissue runs fn up to attempts times while it fails with a retryable
// error. It refuses write operations, which must stay at-most-once.
func Reissue(ctx context.Context, op catalog.Operation, attempts int, fn func(context.Context) error) error {
	if op.Kind() == catalog.KindWrite {
		return apperr.Configuration(string(op), "write operation %q cannot be re-issued", op)
	}
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		kind, ok := apperr.KindOf(err)
		if !ok || !kind.Retryable() || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func attachPayload(req *resty.Request, method string, payload any) error {
	if payload == nil {
		return nil
	}
	if method == http.MethodGet {
		params, err := queryParams(payload)
		if err != nil {
			return err
		}
		req.SetQueryParams(params)
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req.SetHeader("Content-Type", "application/json").SetBody(body)
	return nil
}

func queryParams(payload any) (map[string]string, error) {
	if m, ok := payload.(map[string]string); ok {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("query payload must be an object: %w", err)
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

// IsAuthFailure reports whether err should end the session.
func IsAuthFailure(err error) bool {
	return errors.Is(err, apperr.ErrAuth)
}
