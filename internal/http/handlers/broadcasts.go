package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/broadcast"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/feed"
	"github.com/hongminglow/portal-gateway/internal/http/respond"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/portal"
)

// BroadcastHandler serves the notification feed and the authoring screen.
type BroadcastHandler struct {
	client *portal.Client
	logger *zap.Logger
}

func NewBroadcastHandler(client *portal.Client, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{client: client, logger: logger.Named("broadcasts")}
}

func (h *BroadcastHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/broadcasts", h.handleList)
	mux.HandleFunc("POST /api/broadcasts/{id}/read", h.handleMarkRead)
	mux.HandleFunc("GET /api/broadcasts/targets", h.handleTargets)
	mux.HandleFunc("POST /api/broadcasts", h.handleCreate)
}

type feedView struct {
	Items        []models.BroadcastItem  `json:"items"`
	Unread       int                     `json:"unread"`
	ServiceTimes []feed.ServiceTimeCount `json:"service_times,omitempty"`
}

func (h *BroadcastHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	readFilter, err := feed.ParseReadFilter(q.Get("filter"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	cache := h.client.Feed()
	if q.Get("refresh") == "true" || !cache.Loaded() {
		if _, err := cache.Load(r.Context()); err != nil {
			respondFailure(h.logger, w, r, err)
			return
		}
	}
	f := feed.Filter{Read: readFilter, Category: q.Get("category"), ServiceTime: q.Get("service_time")}
	respond.JSON(w, http.StatusOK, "ok", feedView{
		Items:        cache.Filter(f),
		Unread:       cache.UnreadCount(),
		ServiceTimes: cache.ServiceTimeCounts(f),
	})
}

func (h *BroadcastHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	cache := h.client.Feed()
	id := models.BroadcastID(r.PathValue("id"))
	if err := cache.MarkRead(r.Context(), id); err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "marked as read", map[string]int{"unread": cache.UnreadCount()})
}

func (h *BroadcastHandler) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.client.Composer().Targets(r.Context())
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", targets)
}

func (h *BroadcastHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !requireOperation(w, h.client.Deployment().Catalog, catalog.OpCreateBroadcast) {
		return
	}
	var draft broadcast.Draft
	if err := decodeJSON(r, &draft); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.client.Composer().Send(r.Context(), draft); err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, h.client.Deployment().Broadcasts.Label+" sent", nil)
}
