// Package selection validates caller supplied module identifiers against the
// current catalog before any assembly work starts.
package selection

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/botpack/internal/catalog"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// Resolver resolves identifiers against a fresh catalog snapshot.
type Resolver interface {
	Lookup(ctx context.Context, ids []string) (found []catalog.Module, missing []string, err error)
}

// Selection is an ordered, de-duplicated, non-empty list of modules that
// were present in the catalog when it was validated.
type Selection struct {
	modules []catalog.Module
}

// Modules returns the selected modules in request order.
func (s Selection) Modules() []catalog.Module { return slices.Clone(s.modules) }

// IDs returns the selected identifiers in request order.
func (s Selection) IDs() []string { return catalog.IDs(s.modules) }

// Len returns the number of selected modules.
func (s Selection) Len() int { return len(s.modules) }

// Validator turns raw identifier lists into Selections.
type Validator struct {
	resolver Resolver
}

// NewValidator returns a Validator resolving against r.
func NewValidator(r Resolver) *Validator {
	return &Validator{resolver: r}
}

// Validate trims and NFC-normalizes raw, drops repeats keeping the first
// occurrence, and resolves every identifier. An empty request fails with
// empty_selection before the catalog is read. When any identifier does not
// resolve the whole request fails with unknown_identifier naming all of them.
func (v *Validator) Validate(ctx context.Context, raw []string) (Selection, error) {
	ids := Normalize(raw)
	if len(ids) == 0 {
		return Selection{}, derrors.EmptySelection().Build()
	}

	found, missing, err := v.resolver.Lookup(ctx, ids)
	if err != nil {
		return Selection{}, err
	}
	if len(missing) > 0 {
		return Selection{}, derrors.UnknownIdentifier(missing).Build()
	}
	return Selection{modules: found}, nil
}

// Normalize trims whitespace, converts to NFC, and removes blanks and
// repeats while preserving first-seen order.
func Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id := norm.NFC.String(strings.TrimSpace(r))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
