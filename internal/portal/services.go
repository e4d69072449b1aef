package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/gateway"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
)

// guarded operations have dedicated flows that keep local state consistent
// and are not reachable through Passthrough.
var guarded = map[catalog.Operation]bool{
	catalog.OpLogin:             true,
	catalog.OpMarkBroadcastRead: true,
	catalog.OpCreateBroadcast:   true,
	catalog.OpListBroadcasts:    true,
}

// LogAttendance records who attended a meeting.
func (c *Client) LogAttendance(ctx context.Context, meetingID string, memberIDs []string) error {
	op := string(catalog.OpLogAttendance)
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return apperr.New(apperr.KindValidation, op, "Select a meeting.")
	}
	ids := make([]string, 0, len(memberIDs))
	seen := map[string]bool{}
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return apperr.New(apperr.KindValidation, op, "Select at least one member.")
	}
	return c.Perform(ctx, catalog.OpLogAttendance, dto.LogAttendanceRequest{MeetingID: meetingID, MemberIDs: ids}, nil)
}

// SubmitOpinion posts a resident's opinion on a topic.
func (c *Client) SubmitOpinion(ctx context.Context, topicID int, topicTitle, text string) error {
	op := string(catalog.OpSubmitOpinion)
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.New(apperr.KindValidation, op, "Please write your opinion before submitting.")
	}
	sess, ok := c.sessions.Current()
	if !ok {
		return apperr.New(apperr.KindAuth, op, "Please sign in again.")
	}
	req := dto.OpinionRequest{
		ResidentID: sess.MemberID,
		TopicID:    topicID,
		TopicTitle: strings.TrimSpace(topicTitle),
		Opinion:    text,
		Timestamp:  c.now().UTC().Format(time.RFC3339),
	}
	return c.Perform(ctx, catalog.OpSubmitOpinion, req, nil)
}

// InitiatePayment starts a mobile-money push. The phone defaults to the
// session identity for phone-based deployments.
func (c *Client) InitiatePayment(ctx context.Context, req dto.PaymentRequest) (json.RawMessage, error) {
	op := string(catalog.OpInitiatePayment)
	sess, ok := c.sessions.Current()
	if !ok {
		return nil, apperr.New(apperr.KindAuth, op, "Please sign in again.")
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" && c.deployment.Login.Shape == catalog.ShapePhoneMember {
		req.Phone = sess.Identity
	}
	if req.Phone == "" {
		return nil, apperr.New(apperr.KindValidation, op, "Phone number is required.")
	}
	if req.Amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, op, "Amount must be greater than zero.")
	}
	if req.MemberID == "" {
		req.MemberID = sess.MemberID
	}
	return gateway.Do[json.RawMessage](ctx, c, catalog.OpInitiatePayment, req)
}

// Passthrough performs any other catalog operation with a raw JSON payload.
// Operations outside the active catalog are reported as not found.
func (c *Client) Passthrough(ctx context.Context, op catalog.Operation, payload json.RawMessage) (json.RawMessage, error) {
	if !op.Known() || !c.deployment.Catalog.Has(op) {
		return nil, apperr.New(apperr.KindNotFound, string(op), fmt.Sprintf("%s is not available in this portal", op))
	}
	if guarded[op] {
		return nil, apperr.New(apperr.KindValidation, string(op), fmt.Sprintf("%s has a dedicated endpoint", op))
	}
	var body any
	if len(strings.TrimSpace(string(payload))) > 0 {
		body = payload
	}
	return gateway.Do[json.RawMessage](ctx, c, op, body)
}
