package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ReservedIDKey is the Fields key that carries the kit ID from collect-fields to
// save. It is stripped before the fields are sent to the API.
const ReservedIDKey = "id"

// Field names understood by the Typekit API.
const (
	FieldName    = "name"
	FieldDomains = "domains"
)

// Value is a value that can be threaded from one operation to the next.
// It is implemented only by KitID and Fields.
type Value interface {
	isValue()
}

// KitID identifies a kit.
type KitID string

func (KitID) isValue() {}

// String returns the ID as a plain string.
func (id KitID) String() string {
	return string(id)
}

// Fields holds user-entered kit attributes keyed by API parameter name:
// "name", "domains" and "families[N][id]". Multi-valued parameters such as
// domains keep one entry per value.
type Fields map[string][]string

func (Fields) isValue() {}

// FamilyKey returns the Fields key for the i-th font family ID.
func FamilyKey(i int) string {
	return fmt.Sprintf("families[%d][id]", i)
}

// Clone returns a copy of f that shares no slices with it.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// WithID returns a copy of f with id merged in under ReservedIDKey.
func (f Fields) WithID(id KitID) Fields {
	out := f.Clone()
	out[ReservedIDKey] = []string{string(id)}
	return out
}

// SplitID extracts the reserved kit ID and returns a copy of the remaining fields.
// ok is false when no ID was merged in, i.e. the fields describe a new kit.
func (f Fields) SplitID() (id KitID, ok bool, rest Fields) {
	rest = f.Clone()
	if v, present := rest[ReservedIDKey]; present {
		delete(rest, ReservedIDKey)
		if len(v) > 0 && v[0] != "" {
			return KitID(v[0]), true, rest
		}
	}
	return "", false, rest
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the fields as "key=value" pairs for logging.
func (f Fields) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+strings.Join(f[k], ","))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Kit is a Typekit kit as returned by the API.
type Kit struct {
	// ID is the kit identifier.
	ID string `json:"id" yaml:"id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name"`

	// Analytics reports whether the kit collects analytics.
	Analytics bool `json:"analytics" yaml:"analytics"`

	// Domains lists the domains the kit is served on.
	Domains []string `json:"domains" yaml:"domains"`

	// Families lists the font families attached to the kit.
	Families []Family `json:"families" yaml:"families"`

	// OptimizePerformance reports whether performance optimization is enabled.
	OptimizePerformance bool `json:"optimize_performance" yaml:"optimize_performance"`
}

// Family is a font family referenced by a kit.
type Family struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Slug       string   `json:"slug,omitempty" yaml:"slug,omitempty"`
	CSSNames   []string `json:"css_names,omitempty" yaml:"css_names,omitempty"`
	Subset     string   `json:"subset,omitempty" yaml:"subset,omitempty"`
	Variations []string `json:"variations,omitempty" yaml:"variations,omitempty"`
}
