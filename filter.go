package metrics

import (
	"sort"
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
)

// Filter is a compiled predicate over dotted names, exposing the
// contract from spec.md §6: accepts(name) and accepts(tags) (the tag
// overload renders tags to the canonical "name=value,..." string and
// delegates to the name form). The core never parses filter syntax
// (spec.md §1); callers build a Filter programmatically or a plugin's
// config layer builds one and hands it in.
//
// Grounded on the teacher's filters.go, which does exactly this with
// github.com/hashicorp/go-immutable-radix (v1); upgraded to the
// generic v2 API so the tree's value type is `bool` instead of `any`.
type Filter struct {
	tree         *iradix.Tree[bool]
	defaultAllow bool
}

// NewFilter compiles include/exclude prefix lists into a Filter.
// defaultAllow is returned when no entry's prefix matches (spec.md §7:
// "*.source.filter.include/exclude, ..."; FilterDefault in teacher's
// Config). A prefix present in both lists resolves to excluded (block
// wins), matching the teacher's filters.go insert order.
func NewFilter(include, exclude []string, defaultAllow bool) *Filter {
	t := iradix.New[bool]()
	for _, p := range include {
		t, _, _ = t.Insert([]byte(p), true)
	}
	for _, p := range exclude {
		t, _, _ = t.Insert([]byte(p), false)
	}
	return &Filter{tree: t, defaultAllow: defaultAllow}
}

// AcceptAll is a Filter that accepts every name; used as the default
// when no filter is configured (nil has the same effect).
var AcceptAll = &Filter{tree: iradix.New[bool](), defaultAllow: true}

// Accepts reports whether name passes this filter. A nil Filter accepts
// everything.
func (f *Filter) Accepts(name string) bool {
	if f == nil || f.tree == nil || f.tree.Len() == 0 {
		if f == nil {
			return true
		}
		return f.defaultAllow
	}
	_, allowed, ok := f.tree.Root().LongestPrefix([]byte(name))
	if !ok {
		return f.defaultAllow
	}
	return allowed
}

// AcceptsTags renders tags to a canonical "name=value,..." string
// (sorted by tag name for determinism) and delegates to Accepts.
func (f *Filter) AcceptsTags(tags []*Tag) bool {
	if f == nil {
		return true
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, t.Info.Name+"="+t.Value)
	}
	sort.Strings(parts)
	return f.Accepts(strings.Join(parts, ","))
}
