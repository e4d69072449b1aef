package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/guard"
	"github.com/hongminglow/portal-gateway/internal/http/respond"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
	"github.com/hongminglow/portal-gateway/internal/portal"
	"github.com/hongminglow/portal-gateway/internal/session"
)

// AuthHandler owns login, logout and the current-session view.
type AuthHandler struct {
	client *portal.Client
	logger *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(client *portal.Client, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{client: client, logger: logger.Named("auth")}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("GET /api/session", h.handleSession)
}

type sessionView struct {
	Session    models.Session          `json:"session"`
	Deployment string                  `json:"deployment"`
	TenantName string                  `json:"tenant_name"`
	Login      catalog.LoginPolicy     `json:"login"`
	Broadcasts catalog.BroadcastPolicy `json:"broadcasts"`
	Operations []catalog.Operation     `json:"operations"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	sess, err := h.client.Login(r.Context(), req.Credentials())
	if err != nil {
		if errors.Is(err, session.ErrStaleLogin) {
			respond.Error(w, http.StatusConflict, "a newer sign-in attempt is in progress")
			return
		}
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{
		Session:  sess,
		Redirect: guard.ReturnTo(r.URL.Query().Get("from")),
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Logout(r.Context()); err != nil {
		h.logger.Warn("logout: durable session not removed", zap.Error(err))
	}
	respond.JSON(w, http.StatusOK, "logged out", map[string]string{"redirect": guard.LoginPath})
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := guard.SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		refreshed, err := h.client.RefreshProfile(r.Context())
		if errors.Is(err, session.ErrSessionChanged) {
			respond.Error(w, http.StatusConflict, "session changed while refreshing")
			return
		}
		if err != nil {
			respondFailure(h.logger, w, r, err)
			return
		}
		sess = refreshed
	}
	d := h.client.Deployment()
	respond.JSON(w, http.StatusOK, "ok", sessionView{
		Session:    sess,
		Deployment: d.Name,
		TenantName: d.TenantName,
		Login:      d.Login,
		Broadcasts: d.Broadcasts,
		Operations: d.Catalog.Operations(),
	})
}
