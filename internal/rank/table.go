package rank

import (
	"math"

	dErrors "kudos/pkg/domain-errors"
)

// Level maps a contiguous band of karma totals to a rank label. Bands are
// inclusive on both ends; the top band's Max is Unbounded.
type Level struct {
	Min   int
	Max   int
	Label string
}

// Unbounded marks the top band's upper bound.
const Unbounded = math.MaxInt

// DefaultLevels is the standard rank table. Every non-negative total maps to
// exactly one level; negative totals resolve to the lowest band.
var DefaultLevels = []Level{
	{Min: 0, Max: 9, Label: "Rookie"},
	{Min: 10, Max: 49, Label: "Private"},
	{Min: 50, Max: 99, Label: "Corporal"},
	{Min: 100, Max: 249, Label: "Sergeant"},
	{Min: 250, Max: 499, Label: "Lieutenant"},
	{Min: 500, Max: 999, Label: "Captain"},
	{Min: 1000, Max: 2499, Label: "Major"},
	{Min: 2500, Max: 4999, Label: "Colonel"},
	{Min: 5000, Max: Unbounded, Label: "General"},
}

// validateLevels checks the table invariant: ascending, contiguous
// (each Max is the next Min minus one), labeled, top band unbounded.
func validateLevels(levels []Level) error {
	if len(levels) == 0 {
		return dErrors.New(dErrors.CodeInternal, "rank table is empty")
	}
	for i, level := range levels {
		if level.Label == "" {
			return dErrors.New(dErrors.CodeInternal, "rank table has an unlabeled level")
		}
		if level.Max < level.Min {
			return dErrors.New(dErrors.CodeInternal, "rank table has an inverted band")
		}
		if i > 0 {
			prev := levels[i-1]
			if prev.Max != level.Min-1 {
				return dErrors.New(dErrors.CodeInternal, "rank table has a gap or overlap between bands")
			}
		}
	}
	if levels[len(levels)-1].Max != Unbounded {
		return dErrors.New(dErrors.CodeInternal, "rank table top band must be unbounded")
	}
	return nil
}
