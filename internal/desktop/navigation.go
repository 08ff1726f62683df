package desktop

import (
	"fmt"
	"sort"
	"strings"

	"github.com/1broseidon/autumn/internal/platform"
)

// Direction is a cardinal direction on screen.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts up/down/left/right and the compass names
// north/south/west/east.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "north":
		return DirUp, nil
	case "down", "south":
		return DirDown, nil
	case "left", "west":
		return DirLeft, nil
	case "right", "east":
		return DirRight, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// rankInDirection returns the indices of the candidates whose centers lie in
// dir from origin's center, ordered by Manhattan distance. Ties keep the
// candidates' original order.
func rankInDirection(origin platform.Rect, candidates []platform.Rect, dir Direction) []int {
	c := origin.Center()

	type ranked struct {
		idx  int
		dist int
	}
	var hits []ranked
	for i, r := range candidates {
		rc := r.Center()

		inDirection := false
		switch dir {
		case DirUp:
			inDirection = rc.Y < c.Y
		case DirDown:
			inDirection = rc.Y > c.Y
		case DirLeft:
			inDirection = rc.X < c.X
		case DirRight:
			inDirection = rc.X > c.X
		}
		if !inDirection {
			continue
		}

		hits = append(hits, ranked{idx: i, dist: abs(rc.X-c.X) + abs(rc.Y-c.Y)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
