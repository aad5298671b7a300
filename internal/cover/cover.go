// Package cover rasterizes GeoJSON geometries into tile sets: points land in
// their containing tile, lines are walked through tile space, and polygons
// are filled scanline-wise with even-odd parity so holes subtract.
package cover

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/utiles/utiles/internal/core"
)

type tileSet map[core.Tile]struct{}

func (s tileSet) add(x, y, z int) {
	max := (1 << uint(z)) - 1
	if x < 0 || y < 0 || x > max || y > max {
		return
	}
	s[core.Tile{X: x, Y: y, Z: z}] = struct{}{}
}

// Cover returns the deduplicated set of tiles covering the geometries in a
// GeoJSON document at maxzoom, merged upward to minzoom. The result is
// sorted (z, x, y) and deterministic for a given input.
func Cover(data []byte, minzoom, maxzoom int) ([]core.Tile, error) {
	if minzoom < 0 || maxzoom > core.MaxZoom || minzoom > maxzoom {
		return nil, fmt.Errorf("%w: minzoom %d maxzoom %d", core.ErrInvalidZoom, minzoom, maxzoom)
	}
	geom, err := ParseGeoJSON(data)
	if err != nil {
		return nil, err
	}
	set := make(tileSet)
	coverGeometry(set, geom, maxzoom)
	tiles := make([]core.Tile, 0, len(set))
	for t := range set {
		tiles = append(tiles, t)
	}
	if minzoom < maxzoom {
		tiles = core.SimplifyToZoom(tiles, minzoom)
	} else {
		sortTiles(tiles)
	}
	return tiles, nil
}

// Burn is Cover at a single zoom.
func Burn(data []byte, zoom int) ([]core.Tile, error) {
	return Cover(data, zoom, zoom)
}

// Edges returns the boundary tiles of a tile set: those with at least one of
// their four edge-adjacent neighbors absent.
func Edges(tiles []core.Tile) []core.Tile {
	set := make(tileSet, len(tiles))
	for _, t := range tiles {
		set[t] = struct{}{}
	}
	var out []core.Tile
	for _, t := range tiles {
		for _, n := range [4]core.Tile{
			{X: t.X, Y: t.Y - 1, Z: t.Z},
			{X: t.X - 1, Y: t.Y, Z: t.Z},
			{X: t.X + 1, Y: t.Y, Z: t.Z},
			{X: t.X, Y: t.Y + 1, Z: t.Z},
		} {
			if _, ok := set[n]; !ok {
				out = append(out, t)
				break
			}
		}
	}
	out = dedupe(out)
	sortTiles(out)
	return out
}

// ParseGeoJSON decodes a GeoJSON document that may be a FeatureCollection, a
// Feature, or a bare geometry.
func ParseGeoJSON(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geojson: %w", err)
		}
		var geoms []orb.Geometry
		for _, f := range fc.Features {
			if f.Geometry != nil {
				geoms = append(geoms, f.Geometry)
			}
		}
		return orb.Collection(geoms), nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geojson: %w", err)
		}
		if f.Geometry == nil {
			return orb.Collection{}, nil
		}
		return f.Geometry, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid geojson: %w", err)
		}
		return g.Geometry(), nil
	}
}

func coverGeometry(set tileSet, geom orb.Geometry, zoom int) {
	switch g := geom.(type) {
	case orb.Point:
		coverPoint(set, g, zoom)
	case orb.MultiPoint:
		for _, p := range g {
			coverPoint(set, p, zoom)
		}
	case orb.LineString:
		lineCover(set, g, zoom, nil)
	case orb.MultiLineString:
		for _, ls := range g {
			lineCover(set, ls, zoom, nil)
		}
	case orb.Ring:
		polygonCover(set, orb.Polygon{g}, zoom)
	case orb.Polygon:
		polygonCover(set, g, zoom)
	case orb.MultiPolygon:
		for _, p := range g {
			polygonCover(set, p, zoom)
		}
	case orb.Collection:
		for _, child := range g {
			coverGeometry(set, child, zoom)
		}
	case orb.Bound:
		polygonCover(set, orb.Polygon{g.ToRing()}, zoom)
	}
}

func coverPoint(set tileSet, p orb.Point, zoom int) {
	fx, fy := core.TileFraction(p.Lon(), p.Lat(), zoom)
	set.add(int(math.Floor(fx)), int(math.Floor(fy)), zoom)
}

// lineCover walks every tile crossed by the line. When ring is non-nil the
// tile of each row transition is recorded for the polygon scanline fill.
func lineCover(set tileSet, coords []orb.Point, zoom int, ring *[][2]int) {
	var prevX, prevY int
	hasPrev := false
	x, y := 0, 0

	for i := 0; i+1 < len(coords); i++ {
		x0, y0 := core.TileFraction(coords[i].Lon(), coords[i].Lat(), zoom)
		x1, y1 := core.TileFraction(coords[i+1].Lon(), coords[i+1].Lat(), zoom)
		dx, dy := x1-x0, y1-y0
		if dx == 0 && dy == 0 {
			continue
		}

		sx, sy := 1, 1
		if dx < 0 {
			sx = -1
		}
		if dy < 0 {
			sy = -1
		}
		x = int(math.Floor(x0))
		y = int(math.Floor(y0))

		tMaxX, tMaxY := math.Inf(1), math.Inf(1)
		if dx != 0 {
			lead := 0.0
			if dx > 0 {
				lead = 1.0
			}
			tMaxX = math.Abs((lead + float64(x) - x0) / dx)
		}
		if dy != 0 {
			lead := 0.0
			if dy > 0 {
				lead = 1.0
			}
			tMaxY = math.Abs((lead + float64(y) - y0) / dy)
		}
		tdx := math.Abs(float64(sx) / dx)
		tdy := math.Abs(float64(sy) / dy)

		if !hasPrev || x != prevX || y != prevY {
			set.add(x, y, zoom)
			if ring != nil && (!hasPrev || y != prevY) {
				*ring = append(*ring, [2]int{x, y})
			}
			prevX, prevY, hasPrev = x, y, true
		}
		for tMaxX < 1 || tMaxY < 1 {
			if tMaxX < tMaxY {
				tMaxX += tdx
				x += sx
			} else {
				tMaxY += tdy
				y += sy
			}
			set.add(x, y, zoom)
			if ring != nil && y != prevY {
				*ring = append(*ring, [2]int{x, y})
			}
			prevX, prevY = x, y
		}
	}

	// A closing segment that re-enters the starting row would double-count
	// that row in the scanline parity.
	if ring != nil && len(*ring) > 0 && y == (*ring)[0][1] {
		*ring = (*ring)[:len(*ring)-1]
	}
}

// polygonCover fills the polygon interior row by row using even-odd parity
// over the ring crossings; holes contribute their own crossings and so
// subtract themselves.
func polygonCover(set tileSet, polygon orb.Polygon, zoom int) {
	var intersections [][2]int
	for _, r := range polygon {
		ring := make([][2]int, 0, len(r))
		lineCover(set, r, zoom, &ring)
		for j, length := 0, len(ring); j < length; j++ {
			k := (j + length - 1) % length
			m := (j + 1) % length
			y := ring[j][1]
			// Skip local extrema and duplicate crossings.
			if (y > ring[k][1] || y > ring[m][1]) &&
				(y < ring[k][1] || y < ring[m][1]) &&
				y != ring[m][1] {
				intersections = append(intersections, ring[j])
			}
		}
	}

	sort.Slice(intersections, func(i, j int) bool {
		a, b := intersections[i], intersections[j]
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[0] < b[0]
	})

	for i := 0; i+1 < len(intersections); i += 2 {
		y := intersections[i][1]
		for x := intersections[i][0] + 1; x < intersections[i+1][0]; x++ {
			set.add(x, y, zoom)
		}
	}
}

func dedupe(tiles []core.Tile) []core.Tile {
	seen := make(map[core.Tile]struct{}, len(tiles))
	out := tiles[:0]
	for _, t := range tiles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortTiles(tiles []core.Tile) {
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}
