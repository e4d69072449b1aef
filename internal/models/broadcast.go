package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BroadcastItem is one broadcast/notification as listed for the current member.
// The server owns content; ReadStatus and ReadAt may be advanced locally.
type BroadcastItem struct {
	ID          BroadcastID `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Category    string      `json:"category,omitempty"`
	ServiceTime string      `json:"service_time,omitempty"`
	SenderName  string      `json:"sender_name"`
	Speaker     string      `json:"speaker,omitempty"`
	PDFURL      string      `json:"pdf_url,omitempty"`
	YouTubeURL  string      `json:"youtube_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ReadStatus  Flag        `json:"read_status"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

// IsRead reports the read state as a plain bool.
func (b BroadcastItem) IsRead() bool { return bool(b.ReadStatus) }

// HasMedia reports whether the item links a PDF or a video.
func (b BroadcastItem) HasMedia() bool { return b.PDFURL != "" || b.YouTubeURL != "" }

// BroadcastID is the reconciliation key. Backends send it as a number or a
// string; it is kept in string form.
type BroadcastID string

func (id *BroadcastID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BroadcastID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("broadcast id: %w", err)
	}
	*id = BroadcastID(n.String())
	return nil
}

// Flag is a boolean that also accepts 0/1 and "true"/"false" on the wire.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(raw) {
	case "", "null":
		*f = false
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("flag: unsupported value %s", data)
	}
	*f = Flag(v)
	return nil
}
