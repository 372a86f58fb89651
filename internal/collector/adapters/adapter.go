package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/peakgear/pricewatch/internal/model"
)

// Adapter turns one provider's bespoke JSON payload into unified records.
// Adapt skips malformed items with a warning; it only errors when the payload
// as a whole cannot be read.
type Adapter interface {
	Slug() string
	Currency() string
	Adapt(body []byte) ([]model.UnifiedRecord, error)
}

// Registry holds the known adapters keyed by provider slug.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry from the given adapters, preserving order.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, exists := r.adapters[a.Slug()]; !exists {
			r.order = append(r.order, a.Slug())
		}
		r.adapters[a.Slug()] = a
	}
	return r
}

// Default returns a registry with every supported provider.
func Default() *Registry {
	return NewRegistry(
		NewSportDirect(),
		NewOutdoorPro(),
		NewDagSpor(),
		NewAlpineGear(),
	)
}

// Get returns the adapter for a slug. Unknown slugs error with the list of
// available providers so callers can surface a helpful message.
func (r *Registry) Get(slug string) (Adapter, error) {
	a, ok := r.adapters[slug]
	if !ok {
		available := r.Slugs()
		sort.Strings(available)
		return nil, fmt.Errorf("unknown provider %q, available: %s", slug, strings.Join(available, ", "))
	}
	return a, nil
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.adapters[slug])
	}
	return out
}

// Slugs returns the registered provider slugs in registration order.
func (r *Registry) Slugs() []string {
	return append([]string(nil), r.order...)
}

// flexString accepts a JSON string or number. Provider feeds are
// inconsistent about quoting ids and prices, so both forms land here with
// the original text preserved.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a count: %q", s)
	}
	*f = flexInt(int(v))
	return nil
}
