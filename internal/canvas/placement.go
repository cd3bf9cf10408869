package canvas

import "math"

// Placement grid parameters.
const (
	placementOrigin    = 100.0
	placementStep      = 50.0
	placementColumns   = 5
	placementAttempts  = 20
	placementThreshold = 100.0
)

// FindFreePosition picks a spawn position that is not within 100 units on
// both axes of any of the given item positions. Candidates walk a 5-column
// grid of 50 unit steps from (100, 100). After 20 conflicting attempts the
// last candidate is returned unchecked.
//
// The threshold ignores item size, so large cards may still overlap.
func FindFreePosition(occupied []Point) Point {
	pos := Point{X: placementOrigin, Y: placementOrigin}
	for attempt := 0; attempt < placementAttempts; attempt++ {
		if !conflicts(pos, occupied) {
			break
		}
		pos = Point{
			X: placementOrigin + float64(attempt%placementColumns)*placementStep,
			Y: placementOrigin + float64(attempt/placementColumns)*placementStep,
		}
	}
	return pos
}

func conflicts(pos Point, occupied []Point) bool {
	for _, p := range occupied {
		if math.Abs(p.X-pos.X) < placementThreshold && math.Abs(p.Y-pos.Y) < placementThreshold {
			return true
		}
	}
	return false
}
