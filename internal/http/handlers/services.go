package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/http/respond"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
	"github.com/hongminglow/portal-gateway/internal/portal"
)

// ServiceHandler exposes the member services of the deployment.
type ServiceHandler struct {
	client *portal.Client
	logger *zap.Logger
}

func NewServiceHandler(client *portal.Client, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{client: client, logger: logger.Named("services")}
}

func (h *ServiceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/attendance/{meetingID}", h.handleAttendance)
	mux.HandleFunc("POST /api/opinions", h.handleOpinion)
	mux.HandleFunc("POST /api/payments", h.handlePayment)
	mux.HandleFunc("POST /api/ops/{operation}", h.handleOperation)
}

type attendanceBody struct {
	MemberIDs []string `json:"memberIds"`
}

func (h *ServiceHandler) handleAttendance(w http.ResponseWriter, r *http.Request) {
	if !requireOperation(w, h.client.Deployment().Catalog, catalog.OpLogAttendance) {
		return
	}
	var body attendanceBody
	if err := decodeJSON(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.client.LogAttendance(r.Context(), r.PathValue("meetingID"), body.MemberIDs); err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "attendance recorded", map[string]int{"count": len(body.MemberIDs)})
}

type opinionBody struct {
	TopicID    int    `json:"topicId"`
	TopicTitle string `json:"topicTitle"`
	Opinion    string `json:"opinion"`
}

func (h *ServiceHandler) handleOpinion(w http.ResponseWriter, r *http.Request) {
	if !requireOperation(w, h.client.Deployment().Catalog, catalog.OpSubmitOpinion) {
		return
	}
	var body opinionBody
	if err := decodeJSON(r, &body); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.client.SubmitOpinion(r.Context(), body.TopicID, body.TopicTitle, body.Opinion); err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "opinion submitted", nil)
}

func (h *ServiceHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	if !requireOperation(w, h.client.Deployment().Catalog, catalog.OpInitiatePayment) {
		return
	}
	var req dto.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	reply, err := h.client.InitiatePayment(r.Context(), req)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, "payment initiated", reply)
}

func (h *ServiceHandler) handleOperation(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := decodeJSON(r, &payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	op := catalog.Operation(r.PathValue("operation"))
	reply, err := h.client.Passthrough(r.Context(), op, payload)
	if err != nil {
		respondFailure(h.logger, w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", reply)
}
