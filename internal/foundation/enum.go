// Package foundation holds small generic helpers shared by the configuration
// and service layers.
package foundation

import (
	"slices"
	"strings"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps loosely written values (any case, surrounding space,
// aliases) onto a closed set of typed values.
type Normalizer[T comparable] struct {
	values   map[string]T
	fallback T
}

// NewNormalizer creates a normalizer from accepted spellings to values.
// Unrecognized input normalizes to fallback.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	cleaned := make(map[string]T, len(values))
	for k, v := range values {
		cleaned[clean(k)] = v
	}
	return &Normalizer[T]{values: cleaned, fallback: fallback}
}

// Normalize returns the value for raw, or the fallback.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.fallback
}

// Parse is Normalize without the fallback: unrecognized input is a
// validation error naming field and the accepted spellings.
func (n *Normalizer[T]) Parse(field, raw string) (T, error) {
	if v, ok := n.values[clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, derrors.ValidationError("unrecognized value").
		WithContext("field", field).
		WithContext("value", raw).
		WithContext("accepted", strings.Join(n.Spellings(), ", ")).
		Build()
}

// Spellings lists the accepted inputs in sorted order.
func (n *Normalizer[T]) Spellings() []string {
	out := make([]string, 0, len(n.values))
	for k := range n.values {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
