package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ScopeKind names the audience of an admin-authored broadcast.
type ScopeKind string

const (
	ScopeKindAll     ScopeKind = "all"
	ScopeKindPhase   ScopeKind = "phase"
	ScopeKindBlock   ScopeKind = "block"
	ScopeKindCell    ScopeKind = "cell"
	ScopeKindWardens ScopeKind = "wardens"
	ScopeKindPriest  ScopeKind = "priest"
)

// ErrInvalidScope is returned when a RecipientScope breaks its invariant.
var ErrInvalidScope = errors.New("invalid recipient scope")

// RecipientScope is a tagged variant: "all" carries no target, every other
// kind carries exactly one non-empty target value.
type RecipientScope struct {
	kind   ScopeKind
	target string
}

func ScopeAll() RecipientScope { return RecipientScope{kind: ScopeKindAll} }

func ScopePhase(id string) RecipientScope { return RecipientScope{kind: ScopeKindPhase, target: id} }

func ScopeBlock(id string) RecipientScope { return RecipientScope{kind: ScopeKindBlock, target: id} }

func ScopeCell(id string) RecipientScope { return RecipientScope{kind: ScopeKindCell, target: id} }

func ScopeWardens(id string) RecipientScope {
	return RecipientScope{kind: ScopeKindWardens, target: id}
}

func ScopePriest(id string) RecipientScope { return RecipientScope{kind: ScopeKindPriest, target: id} }

// ParseScope builds a scope from the form fields used by the authoring screen.
func ParseScope(kind, target string) (RecipientScope, error) {
	s := RecipientScope{
		kind:   ScopeKind(strings.ToLower(strings.TrimSpace(kind))),
		target: strings.TrimSpace(target),
	}
	if s.kind == "" {
		s.kind = ScopeKindAll
	}
	if s.kind == ScopeKindAll {
		s.target = ""
	}
	return s, s.Validate()
}

func (s RecipientScope) Kind() ScopeKind {
	if s.kind == "" {
		return ScopeKindAll
	}
	return s.kind
}

// Target is empty for ScopeKindAll.
func (s RecipientScope) Target() string { return s.target }

func (s RecipientScope) Validate() error {
	switch s.Kind() {
	case ScopeKindAll:
		if s.target != "" {
			return fmt.Errorf("%w: %q must not carry a target", ErrInvalidScope, ScopeKindAll)
		}
		return nil
	case ScopeKindPhase, ScopeKindBlock, ScopeKindCell, ScopeKindWardens, ScopeKindPriest:
		if strings.TrimSpace(s.target) == "" {
			return fmt.Errorf("%w: %q requires a target", ErrInvalidScope, s.kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, s.kind)
	}
}

type scopeWire struct {
	Type  ScopeKind `json:"recipientType"`
	Value *string   `json:"recipientValue"`
}

func (s RecipientScope) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	w := scopeWire{Type: s.Kind()}
	if s.Kind() != ScopeKindAll {
		v := s.target
		w.Value = &v
	}
	return json.Marshal(w)
}

func (s *RecipientScope) UnmarshalJSON(data []byte) error {
	var w scopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	target := ""
	if w.Value != nil {
		target = *w.Value
	}
	parsed, err := ParseScope(string(w.Type), target)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
