// Package catalog maps logical portal operations to the webhook URLs of one
// tenant deployment. A catalog is frozen once built.
package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/hongminglow/portal-gateway/internal/apperr"
)

// EndpointDescriptor is the resolved remote endpoint for one operation.
type EndpointDescriptor struct {
	Operation Operation
	URL       string
	Method    string
}

// Catalog is an immutable lookup table for a single deployment.
type Catalog struct {
	deployment string
	entries    map[Operation]EndpointDescriptor
}

// New validates entries and freezes them into a Catalog.
func New(deployment string, entries []EndpointDescriptor) (*Catalog, error) {
	c := &Catalog{
		deployment: deployment,
		entries:    make(map[Operation]EndpointDescriptor, len(entries)),
	}
	for _, e := range entries {
		if !e.Operation.Known() {
			return nil, apperr.Configuration("catalog", "deployment %q lists unknown operation %q", deployment, e.Operation)
		}
		if _, dup := c.entries[e.Operation]; dup {
			return nil, apperr.Configuration("catalog", "deployment %q lists operation %q twice", deployment, e.Operation)
		}
		if err := validateURL(e.URL); err != nil {
			return nil, apperr.Configuration("catalog", "deployment %q operation %q: %v", deployment, e.Operation, err)
		}
		e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
		if e.Method == "" {
			e.Method = e.Operation.DefaultMethod()
		}
		if e.Method != "GET" && e.Method != "POST" {
			return nil, apperr.Configuration("catalog", "deployment %q operation %q: unsupported method %s", deployment, e.Operation, e.Method)
		}
		c.entries[e.Operation] = e
	}
	if _, ok := c.entries[OpLogin]; !ok {
		return nil, apperr.Configuration("catalog", "deployment %q has no %q operation", deployment, OpLogin)
	}
	return c, nil
}

// Resolve returns the descriptor for op or a configuration error when the
// active deployment does not expose it.
func (c *Catalog) Resolve(op Operation) (EndpointDescriptor, error) {
	if c == nil {
		return EndpointDescriptor{}, apperr.Configuration(string(op), "no endpoint catalog is configured")
	}
	e, ok := c.entries[op]
	if !ok {
		return EndpointDescriptor{}, apperr.Configuration(string(op), "operation %q is not available in deployment %q", op, c.deployment)
	}
	return e, nil
}

// Has reports whether op resolves in this catalog.
func (c *Catalog) Has(op Operation) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[op]
	return ok
}

// Operations lists the available operations in name order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, 0, len(c.entries))
	for op := range c.entries {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deployment names the deployment this catalog belongs to.
func (c *Catalog) Deployment() string { return c.deployment }

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be absolute http(s)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
