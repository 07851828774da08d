// Package geofence implements the polygon geofences used to refine
// bounding-box gym queries: a planar fence backed by orb and a spherical
// fence backed by s2, plus loaders for the fence text format and GeoJSON.
package geofence

import (
	"errors"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrEmptyFence is returned by the loaders when no include area was found.
	ErrEmptyFence = errors.New("geofence has no include area")
	// ErrInvalidCoordinate is returned for unparsable or out-of-range coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRing is returned for GeoJSON rings with fewer than 4 positions.
	ErrInvalidRing = errors.New("polygon ring needs at least 4 positions")
)

const (
	// Fences with fewer areas than this are scanned linearly.
	indexThreshold = 8
	// rtreego treats touching rectangles as disjoint, so bounds are padded
	// to keep edge points reachable. Exact containment is decided by planar.
	boundPadding = 1e-9
	minChildren  = 4
	maxChildren  = 16
)

type area struct {
	polygon orb.Polygon
	rect    rtreego.Rect
}

func (a *area) Bounds() rtreego.Rect {
	return a.rect
}

func newArea(polygon orb.Polygon) (*area, error) {
	b := polygon.Bound()
	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0] - boundPadding, b.Min[1] - boundPadding},
		rtreego.Point{b.Max[0] + boundPadding, b.Max[1] + boundPadding},
	)
	if err != nil {
		return nil, err
	}
	return &area{polygon: polygon, rect: rect}, nil
}

// Fence is a planar geofence made of include areas and exclude areas. A point
// belongs to the fence when it is inside at least one include area and inside
// no exclude area. Points on a polygon boundary count as inside.
type Fence struct {
	Name string

	includes []*area
	excludes []*area

	includeIdx *rtreego.Rtree
	excludeIdx *rtreego.Rtree
}

// NewFence builds a fence from include and exclude polygons. Polygons with an
// empty outer ring are skipped. A fence without include polygons is valid and
// contains nothing.
func NewFence(name string, include, exclude []orb.Polygon) *Fence {
	f := &Fence{Name: name}
	f.includes = buildAreas(include)
	f.excludes = buildAreas(exclude)
	f.includeIdx = buildIndex(f.includes)
	f.excludeIdx = buildIndex(f.excludes)
	return f
}

func buildAreas(polygons []orb.Polygon) []*area {
	areas := make([]*area, 0, len(polygons))
	for _, p := range polygons {
		if len(p) == 0 || len(p[0]) == 0 {
			continue
		}
		a, err := newArea(p)
		if err != nil {
			continue
		}
		areas = append(areas, a)
	}
	return areas
}

func buildIndex(areas []*area) *rtreego.Rtree {
	if len(areas) < indexThreshold {
		return nil
	}
	objs := make([]rtreego.Spatial, len(areas))
	for i, a := range areas {
		objs[i] = a
	}
	// bulk-loaded
	return rtreego.NewTree(2, minChildren, maxChildren, objs...)
}

// Areas returns the number of include and exclude areas.
func (f *Fence) Areas() (include, exclude int) {
	return len(f.includes), len(f.excludes)
}

// BoundingBox returns the union of the include-area bounds. A fence without
// include areas returns an inverted box (min > max).
func (f *Fence) BoundingBox() (minLat, minLng, maxLat, maxLng float64) {
	if len(f.includes) == 0 {
		return math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	}
	b := f.includes[0].polygon.Bound()
	for _, a := range f.includes[1:] {
		b = b.Union(a.polygon.Bound())
	}
	return b.Min[1], b.Min[0], b.Max[1], b.Max[0]
}

// Contains reports whether loc is inside the fence.
func (f *Fence) Contains(loc Location) bool {
	pt := loc.point()
	if !anyContains(f.includeIdx, f.includes, pt) {
		return false
	}
	return !anyContains(f.excludeIdx, f.excludes, pt)
}

// FilterToPolygon keeps the locations inside the fence, preserving order.
func (f *Fence) FilterToPolygon(points []Location) []Location {
	out := make([]Location, 0, len(points))
	for _, p := range points {
		if f.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

func anyContains(idx *rtreego.Rtree, areas []*area, pt orb.Point) bool {
	if idx == nil {
		for _, a := range areas {
			if planar.PolygonContains(a.polygon, pt) {
				return true
			}
		}
		return false
	}

	for _, s := range idx.SearchIntersect(rtreego.Point{pt[0], pt[1]}.ToRect(boundPadding)) {
		if planar.PolygonContains(s.(*area).polygon, pt) {
			return true
		}
	}
	return false
}
