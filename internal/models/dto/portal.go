package dto

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hongminglow/portal-gateway/internal/models"
)

// CreateBroadcastRequest is the create-broadcast webhook payload.
type CreateBroadcastRequest struct {
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	Category    *string               `json:"category"`
	Speaker     *string               `json:"speaker"`
	Scope       models.RecipientScope `json:"-"`
	IsAnonymous bool                  `json:"isAnonymous"`
	Type        string                `json:"type"`
	SenderName  string                `json:"senderName,omitempty"`
}

// MarshalJSON flattens the scope into recipientType/recipientValue.
func (r CreateBroadcastRequest) MarshalJSON() ([]byte, error) {
	type plain CreateBroadcastRequest
	body, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	scope, err := json.Marshal(r.Scope)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	var scopeFields map[string]json.RawMessage
	if err := json.Unmarshal(scope, &scopeFields); err != nil {
		return nil, err
	}
	for k, v := range scopeFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// MarkReadRequest is the mark-broadcast-read webhook payload.
type MarkReadRequest struct {
	BroadcastID models.BroadcastID `json:"broadcastId"`
	MemberID    string             `json:"memberId,omitempty"`
}

// LogAttendanceRequest is the log-attendance webhook payload.
type LogAttendanceRequest struct {
	MeetingID string   `json:"meetingId"`
	MemberIDs []string `json:"memberIds"`
}

// OpinionRequest is the submit-opinion webhook payload.
type OpinionRequest struct {
	ResidentID string `json:"resident_id"`
	TopicID    int    `json:"topic_id,omitempty"`
	TopicTitle string `json:"topic_title,omitempty"`
	Opinion    string `json:"opinion"`
	Timestamp  string `json:"timestamp"`
}

// PaymentRequest is the initiate-payment (STK push) webhook payload.
type PaymentRequest struct {
	Phone     string  `json:"phone"`
	Amount    float64 `json:"amount"`
	Purpose   string  `json:"purpose,omitempty"`
	MemberID  string  `json:"memberId,omitempty"`
	Reference string  `json:"reference,omitempty"`
}

// Target is one phase or block offered as a broadcast audience.
type Target struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Phase and Block mirror the backend list rows.
type Phase struct {
	ID        any    `json:"id"`
	PhaseName string `json:"phase_name"`
}

type Block struct {
	ID        any    `json:"id"`
	BlockName string `json:"block_name"`
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Stringify renders a loosely typed backend id.
func Stringify(v any) string { return stringify(v) }
