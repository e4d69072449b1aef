package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/http/respond"
)

// respondFailure logs failures that point at a wiring or backend problem and
// writes the classified error.
func respondFailure(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := apperr.KindOf(err)
	switch {
	case !ok:
		logger.Error("unclassified failure", zap.String("path", r.URL.Path), zap.Error(err))
	case kind == apperr.KindConfiguration:
		logger.Error("catalog misconfiguration", zap.String("path", r.URL.Path), zap.Error(err))
	case kind.Retryable():
		logger.Warn("backend unavailable", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respond.Failure(w, err)
}

// decodeJSON reads an optional JSON body into dst. An empty body is allowed.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// requireOperation answers 404 for views whose operation the deployment lacks.
func requireOperation(w http.ResponseWriter, cat *catalog.Catalog, op catalog.Operation) bool {
	if cat.Has(op) {
		return true
	}
	respond.Error(w, http.StatusNotFound, string(op)+" is not available in this portal")
	return false
}
