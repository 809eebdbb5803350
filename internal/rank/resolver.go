// Package rank resolves karma totals to discrete rank standings.
//
// The resolver is a pure lookup over a small, static, ordered table. It is
// shared by the aggregator (recompute on every applied event) and exposed to
// the HTTP layer for the standing endpoint.
package rank

import (
	dErrors "kudos/pkg/domain-errors"
)

// NextLabelMax is the NextLabel value reported when a total already sits in
// the top band.
const NextLabelMax = "max"

// Standing describes where a total sits in the rank table.
type Standing struct {
	Label string `json:"label"`
	// Progress is the percentage [0,100] through the current band toward
	// the next one. Always 100 in the top band.
	Progress     float64 `json:"progress"`
	PointsToNext int     `json:"points_to_next"`
	NextLabel    string  `json:"next_label"`
}

// Resolver maps totals to standings.
type Resolver struct {
	levels []Level
}

// NewResolver validates the table and builds a resolver. A malformed table
// is a configuration error: fail fast instead of resolving against it.
func NewResolver(levels []Level) (*Resolver, error) {
	if err := validateLevels(levels); err != nil {
		return nil, err
	}
	table := make([]Level, len(levels))
	copy(table, levels)
	return &Resolver{levels: table}, nil
}

// Default builds a resolver over DefaultLevels.
func Default() *Resolver {
	r, err := NewResolver(DefaultLevels)
	if err != nil {
		// DefaultLevels is a package constant; this is unreachable unless
		// the table itself is edited into an invalid shape.
		panic(err)
	}
	return r
}

// Resolve maps a total to its standing. Totals below the lowest band
// (net-negative histories) resolve to the lowest band with progress clamped
// to zero.
func (r *Resolver) Resolve(total int) (Standing, error) {
	idx := 0
	for i, level := range r.levels {
		if total >= level.Min && (level.Max == Unbounded || total <= level.Max) {
			idx = i
			break
		}
	}

	current := r.levels[idx]
	if idx == len(r.levels)-1 {
		return Standing{
			Label:        current.Label,
			Progress:     100,
			PointsToNext: 0,
			NextLabel:    NextLabelMax,
		}, nil
	}

	next := r.levels[idx+1]
	span := next.Min - current.Min
	if span <= 0 {
		// Guarded at construction; re-checked so a malformed table can
		// never produce NaN or a division by zero.
		return Standing{}, dErrors.New(dErrors.CodeInternal, "rank table has a non-increasing band boundary")
	}

	pointsToNext := next.Min - total
	if pointsToNext < 0 {
		pointsToNext = 0
	}

	return Standing{
		Label:        current.Label,
		Progress:     clamp(float64(total-current.Min)/float64(span)*100, 0, 100),
		PointsToNext: pointsToNext,
		NextLabel:    next.Label,
	}, nil
}

// Levels returns a copy of the resolver's table.
func (r *Resolver) Levels() []Level {
	out := make([]Level, len(r.levels))
	copy(out, r.levels)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
