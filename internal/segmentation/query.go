package segmentation

import (
	"time"

	"github.com/ignite/audience-segments/internal/domain"
)

// Group is the conjunction of its predicates. A group without predicates
// matches nothing.
type Group struct {
	Predicates []Predicate
}

// Match reports whether every predicate accepts m.
func (g Group) Match(m *domain.AudienceMember) bool {
	if len(g.Predicates) == 0 {
		return false
	}
	for _, p := range g.Predicates {
		if !p.Match(m) {
			return false
		}
	}
	return true
}

// Query is the disjunction of its groups. A query without groups matches
// nothing.
type Query struct {
	Groups []Group
}

// Match reports whether any group accepts m.
func (q Query) Match(m *domain.AudienceMember) bool {
	for _, g := range q.Groups {
		if g.Match(m) {
			return true
		}
	}
	return false
}

// Empty reports whether the query can never match.
func (q Query) Empty() bool {
	for _, g := range q.Groups {
		if len(g.Predicates) > 0 {
			return false
		}
	}
	return true
}

// CompileGroup compiles the filters of one stored group.
func CompileGroup(filters []domain.Filter, now time.Time) Group {
	g := Group{Predicates: make([]Predicate, 0, len(filters))}
	for _, f := range filters {
		g.Predicates = append(g.Predicates, Compile(f.FilterType, f.Config, now))
	}
	return g
}

// CompileSegment compiles the stored groups of a segment.
func CompileSegment(groups []domain.FilterGroup, now time.Time) Query {
	q := Query{Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		q.Groups = append(q.Groups, CompileGroup(g.Filters, now))
	}
	return q
}

// CompileSpecs compiles unsaved group definitions.
func CompileSpecs(groups []domain.FilterGroupSpec, now time.Time) Query {
	q := Query{Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		q.Groups = append(q.Groups, compileSpecGroup(g, now))
	}
	return q
}

func compileSpecGroup(g domain.FilterGroupSpec, now time.Time) Group {
	out := Group{Predicates: make([]Predicate, 0, len(g.Filters))}
	for _, f := range g.Filters {
		out.Predicates = append(out.Predicates, Compile(f.FilterType, f.Config, now))
	}
	return out
}
