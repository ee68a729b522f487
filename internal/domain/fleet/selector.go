package fleet

import (
	"fmt"
	"math"
	"sort"
)

// DistanceFunc resolves the distance between two waypoints in the same system.
type DistanceFunc func(src, dst string) (float64, error)

// Candidate pairs a ship with its current waypoint for selection
type Candidate struct {
	ShipSymbol string
	Waypoint   string
}

// Selector implements distance-based ship selection for the dispatchers
type Selector struct {
	distance DistanceFunc
}

// NewSelector creates a selector over the given distance function
func NewSelector(distance DistanceFunc) *Selector {
	return &Selector{distance: distance}
}

// SortByDistance returns the candidates ordered by ascending distance to the
// target waypoint. Candidates whose distance cannot be resolved sort last.
func (s *Selector) SortByDistance(candidates []Candidate, target string) []Candidate {
	type scored struct {
		c Candidate
		d float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		d, err := s.distance(c.Waypoint, target)
		if err != nil {
			d = math.MaxFloat64
		}
		ranked[i] = scored{c: c, d: d}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].d < ranked[j].d })
	out := make([]Candidate, len(ranked))
	for i, r := range ranked {
		out[i] = r.c
	}
	return out
}

// Closest returns the candidate nearest the target waypoint
func (s *Selector) Closest(candidates []Candidate, target string) (*Candidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no ships available for selection")
	}
	ordered := s.SortByDistance(candidates, target)
	return &ordered[0], nil
}
