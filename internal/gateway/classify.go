package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
)

// envelope is the wrapper some webhook flows reply with. Others reply with
// the bare payload.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// classify maps a non-2xx reply onto the error taxonomy.
func classify(op catalog.Operation, status int, body []byte) *apperr.Error {
	msg := serverMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	var kind apperr.Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = apperr.KindAuth
	case status == http.StatusNotFound:
		kind = apperr.KindNotFound
	case status >= 400 && status < 500:
		kind = apperr.KindValidation
	default:
		kind = apperr.KindServer
	}
	return &apperr.Error{Kind: kind, Op: string(op), Status: status, Message: msg}
}

func serverMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	if body[0] != '{' {
		if json.Valid(body) {
			return ""
		}
		if len(body) > 200 {
			body = body[:200]
		}
		return strings.TrimSpace(string(body))
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.text()
}

// decode writes a 2xx body into out, unwrapping the envelope when present.
// success:false inside a 2xx reply is a validation failure.
func decode(op catalog.Operation, body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err == nil {
			var env envelope
			_ = json.Unmarshal(body, &env)
			if env.Success != nil && !*env.Success {
				msg := env.text()
				if msg == "" {
					msg = "the request was not accepted"
				}
				return &apperr.Error{Kind: apperr.KindValidation, Op: string(op), Status: http.StatusOK, Message: msg}
			}
			if isEnvelope(fields) {
				body = bytes.TrimSpace(env.Data)
			}
		}
	}
	if out == nil || len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.KindServer, string(op), fmt.Errorf("decode response: %w", err))
	}
	return nil
}

var envelopeKeys = map[string]bool{"success": true, "message": true, "error": true, "code": true, "status": true}

// isEnvelope reports whether fields hold only "data" plus envelope metadata.
func isEnvelope(fields map[string]json.RawMessage) bool {
	if _, ok := fields["data"]; !ok {
		return false
	}
	for k := range fields {
		if k != "data" && !envelopeKeys[k] {
			return false
		}
	}
	return true
}
