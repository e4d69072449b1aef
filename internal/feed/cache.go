// Package feed caches the broadcast list of the signed-in member and keeps
// read state monotonic across optimistic updates and server refreshes.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/gateway"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/models/dto"
)

// SessionSource exposes the current session without I/O.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Cache holds the last applied broadcast set.
type Cache struct {
	performer gateway.Performer
	sessions  SessionSource
	policy    catalog.BroadcastPolicy
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	items     []models.BroadcastItem
	index     map[models.BroadcastID]int
	unread    int
	loaded    bool
	localRead map[models.BroadcastID]time.Time
	issued    uint64
	applied   uint64
}

// New builds an empty cache for one deployment.
func New(performer gateway.Performer, sessions SessionSource, policy catalog.BroadcastPolicy, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		performer: performer,
		sessions:  sessions,
		policy:    policy,
		logger:    logger.Named("feed"),
		now:       time.Now,
		index:     map[models.BroadcastID]int{},
		localRead: map[models.BroadcastID]time.Time{},
	}
}

// Load replaces the cached set with a fresh server listing. A failed load
// leaves the cache as it was. A load that completes after a newer one has
// been applied is dropped and the current set is returned.
func (c *Cache) Load(ctx context.Context) ([]models.BroadcastItem, error) {
	c.mu.Lock()
	c.issued++
	gen := c.issued
	c.mu.Unlock()

	var payload map[string]string
	if sess, ok := c.sessions.Current(); ok && sess.MemberID != "" {
		payload = map[string]string{"memberId": sess.MemberID}
	}
	raw, err := gateway.Do[json.RawMessage](ctx, c.performer, catalog.OpListBroadcasts, payload)
	if err != nil {
		return nil, err
	}
	fetched, err := decodeItems(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServer, string(catalog.OpListBroadcasts), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen <= c.applied {
		c.logger.Debug("dropping superseded load", zap.Uint64("generation", gen), zap.Uint64("applied", c.applied))
		return c.snapshotLocked(), nil
	}
	c.applyLocked(fetched)
	c.applied = gen
	return c.snapshotLocked(), nil
}

func (c *Cache) applyLocked(fetched []models.BroadcastItem) {
	items := make([]models.BroadcastItem, 0, len(fetched))
	index := make(map[models.BroadcastID]int, len(fetched))
	localRead := make(map[models.BroadcastID]time.Time, len(c.localRead))
	unread := 0
	for _, it := range fetched {
		if _, dup := index[it.ID]; dup {
			continue
		}
		if at, ok := c.localRead[it.ID]; ok {
			localRead[it.ID] = at
			if !it.IsRead() {
				it.ReadStatus = true
				ts := at
				it.ReadAt = &ts
			}
		}
		if !it.IsRead() {
			unread++
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	c.items = items
	c.index = index
	c.localRead = localRead
	c.unread = unread
	c.loaded = true
}

// MarkRead marks id read locally, then confirms with the server. Already-read
// items are skipped without a call. A failed confirmation keeps the local
// state and returns the error.
func (c *Cache) MarkRead(ctx context.Context, id models.BroadcastID) error {
	op := string(catalog.OpMarkBroadcastRead)
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return apperr.New(apperr.KindNotFound, op, fmt.Sprintf("broadcast %s is not in the feed", id))
	}
	if c.items[i].IsRead() {
		c.mu.Unlock()
		return nil
	}
	at := c.now().UTC()
	c.items[i].ReadStatus = true
	c.items[i].ReadAt = &at
	c.localRead[id] = at
	if c.unread > 0 {
		c.unread--
	}
	c.mu.Unlock()

	req := dto.MarkReadRequest{BroadcastID: id}
	if sess, ok := c.sessions.Current(); ok {
		req.MemberID = sess.MemberID
	}
	if err := c.performer.Perform(ctx, catalog.OpMarkBroadcastRead, req, nil); err != nil {
		c.logger.Warn("mark read not confirmed", zap.String("broadcast_id", string(id)), zap.Error(err))
		return err
	}
	return nil
}

// Reset forgets everything, including loads still in flight.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.index = map[models.BroadcastID]int{}
	c.localRead = map[models.BroadcastID]time.Time{}
	c.unread = 0
	c.loaded = false
	c.applied = c.issued
}

// Loaded reports whether any load has been applied since the last Reset.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// UnreadCount returns the number of cached items not yet read.
func (c *Cache) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// Items returns a copy of the cached set in server order.
func (c *Cache) Items() []models.BroadcastItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Item returns one cached item.
func (c *Cache) Item(id models.BroadcastID) (models.BroadcastItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.BroadcastItem{}, false
	}
	return c.items[i], true
}

// Recent returns up to n items, newest first.
func (c *Cache) Recent(n int) []models.BroadcastItem {
	items := c.Items()
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

func (c *Cache) snapshotLocked() []models.BroadcastItem {
	out := make([]models.BroadcastItem, len(c.items))
	copy(out, c.items)
	return out
}

// decodeItems accepts a bare array or an object wrapping one.
func decodeItems(raw json.RawMessage) ([]models.BroadcastItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []models.BroadcastItem
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode broadcasts: %w", err)
		}
		return items, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode broadcasts: %w", err)
	}
	for _, key := range []string{"broadcasts", "items", "notifications", "sermons"} {
		if inner, ok := wrapped[key]; ok {
			return decodeItems(inner)
		}
	}
	return nil, fmt.Errorf("decode broadcasts: no list in reply")
}
