// Package candidate models the working set of panel identifiers between pipeline stages.
package candidate

import "sort"

// Member is one identifier in a candidate set.
type Member struct {
	ID     string
	Score  float64
	Scored bool
	// Fields lists the payload fields whose entries produced the score.
	Fields []string
}

// Set is an immutable set of unique identifiers with optional scores.
// The zero value is an empty, constrained set.
type Set struct {
	unconstrained bool
	members       map[string]Member
}

// Unconstrained returns the sentinel meaning "no structured constraint was requested".
func Unconstrained() Set {
	return Set{unconstrained: true}
}

// FromIDs builds an unscored set. Duplicates collapse.
func FromIDs(ids []string) Set {
	m := make(map[string]Member, len(ids))
	for _, id := range ids {
		m[id] = Member{ID: id}
	}
	return Set{members: m}
}

// FromMembers builds a scored set. When an identifier repeats, the highest score wins.
func FromMembers(ms []Member) Set {
	m := make(map[string]Member, len(ms))
	for _, in := range ms {
		cur, ok := m[in.ID]
		if ok && !better(in, cur) {
			continue
		}
		in.Fields = append([]string(nil), in.Fields...)
		m[in.ID] = in
	}
	return Set{members: m}
}

func better(a, b Member) bool {
	if a.Scored != b.Scored {
		return a.Scored
	}
	return a.Score > b.Score
}

// IsUnconstrained reports whether this is the unconstrained sentinel.
func (s Set) IsUnconstrained() bool { return s.unconstrained }

// IsEmpty reports whether the set is constrained and has no members.
func (s Set) IsEmpty() bool { return !s.unconstrained && len(s.members) == 0 }

// Len returns the member count; zero for the unconstrained sentinel.
func (s Set) Len() int { return len(s.members) }

// Contains reports membership. The unconstrained sentinel contains every identifier.
func (s Set) Contains(id string) bool {
	if s.unconstrained {
		return true
	}
	_, ok := s.members[id]
	return ok
}

// Get returns a member by identifier.
func (s Set) Get(id string) (Member, bool) {
	m, ok := s.members[id]
	return m, ok
}

// IDs returns identifiers in ascending order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ranked returns members ordered by score descending (scored first), then identifier ascending.
func (s Set) Ranked() []Member {
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Scored != b.Scored {
			return a.Scored
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	return out
}

// Intersect returns members present in both sets. Unconstrained is the identity element.
// Scores combine by minimum; payload fields are unioned.
func Intersect(a, b Set) Set {
	if a.unconstrained {
		return b
	}
	if b.unconstrained {
		return a
	}
	small, large := a, b
	if len(large.members) < len(small.members) {
		small, large = large, small
	}

	out := make(map[string]Member, len(small.members))
	for id, x := range small.members {
		y, ok := large.members[id]
		if !ok {
			continue
		}
		out[id] = combine(x, y)
	}
	return Set{members: out}
}

func combine(x, y Member) Member {
	m := Member{ID: x.ID, Fields: unionFields(x.Fields, y.Fields)}
	switch {
	case x.Scored && y.Scored:
		m.Scored = true
		m.Score = min(x.Score, y.Score)
	case x.Scored:
		m.Scored, m.Score = true, x.Score
	case y.Scored:
		m.Scored, m.Score = true, y.Score
	}
	return m
}

func unionFields(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, f := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Without returns the set minus the given identifiers. Never adds members.
func (s Set) Without(drop map[string]struct{}) Set {
	if s.unconstrained || len(drop) == 0 {
		return s
	}
	out := make(map[string]Member, len(s.members))
	for id, m := range s.members {
		if _, ok := drop[id]; !ok {
			out[id] = m
		}
	}
	return Set{members: out}
}

// Truncate keeps the first k members in Ranked order. k <= 0 keeps everything.
func (s Set) Truncate(k int) Set {
	if s.unconstrained || k <= 0 || len(s.members) <= k {
		return s
	}
	ranked := s.Ranked()[:k]
	out := make(map[string]Member, k)
	for _, m := range ranked {
		out[m.ID] = m
	}
	return Set{members: out}
}
