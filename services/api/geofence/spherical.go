package geofence

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

type sphericalArea struct {
	outer *s2.Loop
	holes []*s2.Loop
}

func (a sphericalArea) contains(p s2.Point) bool {
	if !a.outer.ContainsPoint(p) {
		return false
	}
	for _, h := range a.holes {
		if h.ContainsPoint(p) {
			return false
		}
	}
	return true
}

// Spherical is a geofence whose edges are geodesics rather than straight
// lines in lat/lng space. Use it for fences spanning several degrees, where
// the planar approximation drifts. Boundary points follow s2's semi-open
// containment rules.
type Spherical struct {
	Name string

	includes []sphericalArea
	excludes []sphericalArea
}

// NewSpherical builds a spherical fence from the same polygons a planar Fence
// takes. Ring orientation does not matter; every loop is normalized to enclose
// at most half the sphere.
func NewSpherical(name string, include, exclude []orb.Polygon) *Spherical {
	return &Spherical{
		Name:     name,
		includes: sphericalAreas(include),
		excludes: sphericalAreas(exclude),
	}
}

func sphericalAreas(polygons []orb.Polygon) []sphericalArea {
	out := make([]sphericalArea, 0, len(polygons))
	for _, p := range polygons {
		if len(p) == 0 {
			continue
		}
		outer := ringLoop(p[0])
		if outer == nil {
			continue
		}
		a := sphericalArea{outer: outer}
		for _, r := range p[1:] {
			if h := ringLoop(r); h != nil {
				a.holes = append(a.holes, h)
			}
		}
		out = append(out, a)
	}
	return out
}

func ringLoop(r orb.Ring) *s2.Loop {
	// s2 loops are implicitly closed
	if r.Closed() {
		r = r[:len(r)-1]
	}
	if len(r) < 3 {
		return nil
	}
	pts := make([]s2.Point, len(r))
	for i, p := range r {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0]))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop
}

// BoundingBox returns the lat/lng rectangle covering every include loop. When
// the covering crosses the antimeridian the full longitude range is returned.
func (s *Spherical) BoundingBox() (minLat, minLng, maxLat, maxLng float64) {
	rect := s2.EmptyRect()
	for _, a := range s.includes {
		rect = rect.Union(a.outer.RectBound())
	}
	if rect.IsEmpty() {
		return math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	}

	minLat, maxLat = rect.Lo().Lat.Degrees(), rect.Hi().Lat.Degrees()
	if rect.Lng.IsInverted() || rect.Lng.IsFull() {
		return minLat, -180, maxLat, 180
	}
	return minLat, rect.Lo().Lng.Degrees(), maxLat, rect.Hi().Lng.Degrees()
}

// Contains reports whether loc is inside the fence.
func (s *Spherical) Contains(loc Location) bool {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(loc.Lat, loc.Lng))
	in := false
	for _, a := range s.includes {
		if a.contains(p) {
			in = true
			break
		}
	}
	if !in {
		return false
	}
	for _, a := range s.excludes {
		if a.contains(p) {
			return false
		}
	}
	return true
}

// FilterToPolygon keeps the locations inside the fence, preserving order.
func (s *Spherical) FilterToPolygon(points []Location) []Location {
	out := make([]Location, 0, len(points))
	for _, p := range points {
		if s.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}
