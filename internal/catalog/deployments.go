package catalog

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/models"
)

//go:embed deployments/*.yaml
var embedded embed.FS

// LoginShape names which pair of fields a deployment's login form collects.
type LoginShape string

const (
	ShapeEmailApartment LoginShape = "email_apartment"
	ShapePhoneMember    LoginShape = "phone_member"
)

// LoginPolicy describes the credential contract of a deployment.
type LoginPolicy struct {
	Shape           LoginShape `yaml:"shape" json:"shape"`
	RequireMemberID bool       `yaml:"require_member_id" json:"require_member_id"`
}

// RequiresSecondary reports whether the second credential may not be blank.
func (p LoginPolicy) RequiresSecondary() bool {
	return p.Shape == ShapeEmailApartment || p.RequireMemberID
}

// Fields returns the backend field names for identity and secondary credential.
func (p LoginPolicy) Fields() (identity, secondary string) {
	if p.Shape == ShapeEmailApartment {
		return "email", "apartment_id"
	}
	return "phone", "member_id"
}

// ServiceTime is a selectable service slot for the service-time category.
type ServiceTime struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// BroadcastPolicy is the per-deployment broadcast feature set.
type BroadcastPolicy struct {
	Label               string             `yaml:"label" json:"label"`
	Kind                string             `yaml:"kind" json:"kind"`
	Categories          []string           `yaml:"categories" json:"categories"`
	ServiceTimeCategory string             `yaml:"service_time_category" json:"service_time_category,omitempty"`
	ServiceTimes        []ServiceTime      `yaml:"service_times" json:"service_times,omitempty"`
	RecipientOptions    []models.ScopeKind `yaml:"recipient_options" json:"recipient_options"`
	AllowAnonymous      bool               `yaml:"allow_anonymous" json:"allow_anonymous"`
	MaxMessageLength    int                `yaml:"max_message_length" json:"max_message_length"`
}

// AllowsScope reports whether the authoring screen may target kind.
func (b BroadcastPolicy) AllowsScope(kind models.ScopeKind) bool {
	for _, k := range b.RecipientOptions {
		if k == kind {
			return true
		}
	}
	return false
}

// Deployment is the closed configuration of one tenant deployment, resolved
// once at startup.
type Deployment struct {
	Name       string
	TenantName string
	TenantID   string
	BaseURL    string
	Login      LoginPolicy
	Broadcasts BroadcastPolicy
	Catalog    *Catalog
}

type deploymentFile struct {
	Name       string                     `yaml:"name"`
	TenantName string                     `yaml:"tenant_name"`
	TenantID   string                     `yaml:"tenant_id"`
	BaseURL    string                     `yaml:"base_url"`
	Login      LoginPolicy                `yaml:"login"`
	Broadcasts BroadcastPolicy            `yaml:"broadcasts"`
	Operations map[Operation]endpointSpec `yaml:"operations"`
}

// endpointSpec accepts either a bare path/URL or a {url, method} mapping.
type endpointSpec struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
}

func (e *endpointSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.URL = node.Value
		return nil
	}
	type plain endpointSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = endpointSpec(p)
	return nil
}

// Names lists the embedded deployments.
func Names() []string {
	entries, err := embedded.ReadDir("deployments")
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		out = append(out, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	sort.Strings(out)
	return out
}

// Load resolves an embedded deployment by name.
func Load(name string) (*Deployment, error) {
	name = strings.TrimSpace(name)
	data, err := embedded.ReadFile("deployments/" + name + ".yaml")
	if err != nil {
		return nil, apperr.Configuration("catalog", "unknown deployment %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return Parse(data)
}

// LoadFile reads a deployment definition from disk.
func LoadFile(filename string) (*Deployment, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "catalog", fmt.Errorf("read deployment file: %w", err))
	}
	return Parse(data)
}

// Parse decodes and validates a YAML deployment definition.
func Parse(data []byte) (*Deployment, error) {
	var f deploymentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "catalog", fmt.Errorf("parse deployment: %w", err))
	}
	if strings.TrimSpace(f.Name) == "" {
		return nil, apperr.Configuration("catalog", "deployment name is required")
	}
	switch f.Login.Shape {
	case ShapeEmailApartment, ShapePhoneMember:
	case "":
		f.Login.Shape = ShapePhoneMember
	default:
		return nil, apperr.Configuration("catalog", "deployment %q: unknown login shape %q", f.Name, f.Login.Shape)
	}

	b := f.Broadcasts
	if b.Label == "" {
		b.Label = "Broadcasts"
	}
	if b.Kind == "" {
		b.Kind = "broadcast"
	}
	if b.MaxMessageLength <= 0 {
		b.MaxMessageLength = 2000
	}
	if len(b.RecipientOptions) == 0 {
		b.RecipientOptions = []models.ScopeKind{models.ScopeKindAll}
	}
	for _, k := range b.RecipientOptions {
		switch k {
		case models.ScopeKindAll, models.ScopeKindPhase, models.ScopeKindBlock,
			models.ScopeKindCell, models.ScopeKindWardens, models.ScopeKindPriest:
		default:
			return nil, apperr.Configuration("catalog", "deployment %q: unknown recipient option %q", f.Name, k)
		}
	}

	entries := make([]EndpointDescriptor, 0, len(f.Operations))
	for op, spec := range f.Operations {
		entries = append(entries, EndpointDescriptor{
			Operation: op,
			URL:       joinURL(f.BaseURL, spec.URL),
			Method:    spec.Method,
		})
	}
	cat, err := New(f.Name, entries)
	if err != nil {
		return nil, err
	}

	tenantID := strings.TrimSpace(f.TenantID)
	if tenantID == "" {
		tenantID = f.Name
	}
	return &Deployment{
		Name:       f.Name,
		TenantName: f.TenantName,
		TenantID:   tenantID,
		BaseURL:    strings.TrimRight(f.BaseURL, "/"),
		Login:      f.Login,
		Broadcasts: b,
		Catalog:    cat,
	}, nil
}

func joinURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(ref, "/")
}
