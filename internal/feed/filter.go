package feed

import (
	"fmt"
	"strings"

	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/models"
)

// ReadFilter is the read/unread axis of the feed.
type ReadFilter string

const (
	ReadAll    ReadFilter = "all"
	ReadOnly   ReadFilter = "read"
	UnreadOnly ReadFilter = "unread"
)

// ParseReadFilter accepts the query-string form; empty means all.
func ParseReadFilter(s string) (ReadFilter, error) {
	switch f := ReadFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ReadAll, nil
	case ReadAll, ReadOnly, UnreadOnly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown read filter %q", s)
	}
}

// Filter is a conjunction of the read axis and the category axis. ServiceTime
// only narrows results when Category is the deployment's service-time category.
type Filter struct {
	Read        ReadFilter
	Category    string
	ServiceTime string
}

func (f Filter) matchRead(it models.BroadcastItem) bool {
	switch f.Read {
	case ReadOnly:
		return it.IsRead()
	case UnreadOnly:
		return !it.IsRead()
	default:
		return true
	}
}

func (f Filter) matchCategory(it models.BroadcastItem, policy catalog.BroadcastPolicy) bool {
	if f.Category == "" {
		return true
	}
	if !strings.EqualFold(it.Category, f.Category) {
		return false
	}
	if f.ServiceTime != "" && isServiceTimeCategory(policy, f.Category) {
		return strings.EqualFold(it.ServiceTime, f.ServiceTime)
	}
	return true
}

func isServiceTimeCategory(policy catalog.BroadcastPolicy, category string) bool {
	return policy.ServiceTimeCategory != "" && strings.EqualFold(policy.ServiceTimeCategory, category)
}

// Filter derives a view of the cached set. It does not mutate the cache.
func (c *Cache) Filter(f Filter) []models.BroadcastItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.BroadcastItem, 0, len(c.items))
	for _, it := range c.items {
		if f.matchRead(it) && f.matchCategory(it, c.policy) {
			out = append(out, it)
		}
	}
	return out
}

// ServiceTimeCount is one row of the service-time drill-down.
type ServiceTimeCount struct {
	catalog.ServiceTime
	Count int `json:"count"`
}

// ServiceTimeCounts counts service-time-category items per configured slot,
// honouring the read axis of f. Slots keep the deployment's order.
func (c *Cache) ServiceTimeCounts(f Filter) []ServiceTimeCount {
	if c.policy.ServiceTimeCategory == "" {
		return nil
	}
	scoped := Filter{Read: f.Read, Category: c.policy.ServiceTimeCategory}
	counts := map[string]int{}
	for _, it := range c.Filter(scoped) {
		counts[strings.ToLower(it.ServiceTime)]++
	}
	out := make([]ServiceTimeCount, 0, len(c.policy.ServiceTimes))
	for _, st := range c.policy.ServiceTimes {
		out = append(out, ServiceTimeCount{ServiceTime: st, Count: counts[strings.ToLower(st.ID)]})
	}
	return out
}
