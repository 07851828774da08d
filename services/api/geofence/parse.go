package geofence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Definition is a parsed geofence that can be built as either a planar or a
// spherical fence.
type Definition struct {
	Name    string
	Include []orb.Polygon
	Exclude []orb.Polygon
}

// Planar builds the definition as a planar Fence.
func (d Definition) Planar() *Fence {
	return NewFence(d.Name, d.Include, d.Exclude)
}

// Spherical builds the definition as a Spherical fence.
func (d Definition) Spherical() *Spherical {
	return NewSpherical(d.Name, d.Include, d.Exclude)
}

// ReadText reads polygons in the fence text format:
//
//	[Area name]
//	52.5200,13.4050
//	52.5300,13.4150
//	52.5100,13.4250
//
// Each bracketed header starts a new polygon. Blank lines and lines starting
// with '#' are ignored. Points listed before the first header form an
// unnamed polygon.
func ReadText(r io.Reader) ([]orb.Polygon, error) {
	var (
		polygons []orb.Polygon
		name     string
		ring     orb.Ring
		lineNo   int
	)

	flush := func() error {
		if len(ring) == 0 {
			return nil
		}
		if len(ring) < 3 {
			return fmt.Errorf("area %q: need at least 3 points, got %d", name, len(ring))
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		polygons = append(polygons, orb.Polygon{ring})
		ring = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		loc, err := ParseLocation(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ring = append(ring, loc.point())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fence: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return polygons, nil
}

// ParseText builds a definition from fence text. exclude may be nil.
func ParseText(name string, include, exclude io.Reader) (Definition, error) {
	def := Definition{Name: name}

	var err error
	def.Include, err = ReadText(include)
	if err != nil {
		return Definition{}, fmt.Errorf("include fence: %w", err)
	}
	if len(def.Include) == 0 {
		return Definition{}, ErrEmptyFence
	}

	if exclude != nil {
		def.Exclude, err = ReadText(exclude)
		if err != nil {
			return Definition{}, fmt.Errorf("exclude fence: %w", err)
		}
	}
	return def, nil
}

// ParseGeoJSON builds a definition from a GeoJSON FeatureCollection, Feature
// or bare geometry. Polygon and MultiPolygon geometries are used; features
// with a true "exclude" property become exclude areas.
func ParseGeoJSON(name string, data []byte) (Definition, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Definition{}, fmt.Errorf("failed to decode geojson: %w", err)
	}

	def := Definition{Name: name}
	add := func(g orb.Geometry, exclude bool) {
		if exclude {
			def.Exclude = append(def.Exclude, polygonsOf(g)...)
		} else {
			def.Include = append(def.Include, polygonsOf(g)...)
		}
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Definition{}, fmt.Errorf("failed to decode feature collection: %w", err)
		}
		for i, f := range fc.Features {
			exclude, err := excludeProperty(f.Properties)
			if err != nil {
				return Definition{}, fmt.Errorf("feature %d: %w", i, err)
			}
			add(f.Geometry, exclude)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Definition{}, fmt.Errorf("failed to decode feature: %w", err)
		}
		exclude, err := excludeProperty(f.Properties)
		if err != nil {
			return Definition{}, err
		}
		add(f.Geometry, exclude)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Definition{}, fmt.Errorf("failed to decode geometry: %w", err)
		}
		add(g.Geometry(), false)
	}

	if err := validatePolygons(def.Include); err != nil {
		return Definition{}, err
	}
	if err := validatePolygons(def.Exclude); err != nil {
		return Definition{}, err
	}
	if len(def.Include) == 0 {
		return Definition{}, ErrEmptyFence
	}
	return def, nil
}

// LoadFile reads an include fence and an optional exclude fence from disk.
// Files ending in .json or .geojson are read as GeoJSON, anything else as
// fence text. The definition is named after the include file.
func LoadFile(includePath, excludePath string) (Definition, error) {
	name := strings.TrimSuffix(filepath.Base(includePath), filepath.Ext(includePath))

	include, err := loadPolygons(name, includePath)
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Name: name, Include: include.Include, Exclude: include.Exclude}
	if len(def.Include) == 0 {
		return Definition{}, ErrEmptyFence
	}

	if excludePath != "" {
		exclude, err := loadPolygons(name, excludePath)
		if err != nil {
			return Definition{}, err
		}
		def.Exclude = append(def.Exclude, exclude.Include...)
		def.Exclude = append(def.Exclude, exclude.Exclude...)
	}
	return def, nil
}

func loadPolygons(name, path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		def, err := ParseGeoJSON(name, data)
		if err != nil {
			return Definition{}, fmt.Errorf("%s: %w", path, err)
		}
		return def, nil
	default:
		polygons, err := ReadText(bytes.NewReader(data))
		if err != nil {
			return Definition{}, fmt.Errorf("%s: %w", path, err)
		}
		return Definition{Name: name, Include: polygons}, nil
	}
}

func polygonsOf(g orb.Geometry) []orb.Polygon {
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	case orb.Collection:
		var out []orb.Polygon
		for _, c := range g {
			out = append(out, polygonsOf(c)...)
		}
		return out
	default:
		return nil
	}
}

func excludeProperty(props geojson.Properties) (bool, error) {
	v, ok := props["exclude"]
	if !ok || v == nil {
		return false, nil
	}
	exclude, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("exclude property must be a boolean, got %v", v)
	}
	return exclude, nil
}

func validatePolygons(polygons []orb.Polygon) error {
	for _, p := range polygons {
		if len(p) == 0 {
			return fmt.Errorf("%w: polygon has no rings", ErrInvalidRing)
		}
		for _, r := range p {
			if len(r) < 4 {
				return fmt.Errorf("%w: got %d", ErrInvalidRing, len(r))
			}
			for _, pt := range r {
				if loc := (Location{Lat: pt[1], Lng: pt[0]}); !loc.Valid() {
					return fmt.Errorf("%w: %s", ErrInvalidCoordinate, loc)
				}
			}
		}
	}
	return nil
}
