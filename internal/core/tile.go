package core

import (
	"fmt"
	"math"
)

// MaxZoom is the deepest zoom level the toolkit operates on.
const MaxZoom = 32

// Tile is an XYZ Web-Mercator tile index. x grows east, y grows south.
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// NewTile returns the tile (x, y, z).
func NewTile(x, y, z int) Tile {
	return Tile{X: x, Y: y, Z: z}
}

// Valid reports whether the tile coordinates are inside the zoom's grid.
func (t Tile) Valid() bool {
	if t.Z < 0 || t.Z > MaxZoom {
		return false
	}
	n := int64(1) << uint(t.Z)
	return t.X >= 0 && int64(t.X) < n && t.Y >= 0 && int64(t.Y) < n
}

// FlipY returns the tile with the TMS y convention (y grows north).
func (t Tile) FlipY() Tile {
	return Tile{X: t.X, Y: (1 << uint(t.Z)) - 1 - t.Y, Z: t.Z}
}

// UL returns the upper-left (northwest) corner of the tile.
func (t Tile) UL() LngLat {
	n := math.Exp2(float64(t.Z))
	lng := float64(t.X)/n*360.0 - 180.0
	lat := math.Atan(math.Sinh(math.Pi*(1.0-2.0*float64(t.Y)/n))) * 180.0 / math.Pi
	return LngLat{Lng: lng, Lat: lat}
}

// Bounds returns the WGS84 bounding box of the tile.
func (t Tile) Bounds() LngLatBbox {
	ul := t.UL()
	lr := Tile{X: t.X + 1, Y: t.Y + 1, Z: t.Z}.UL()
	return LngLatBbox{West: ul.Lng, South: lr.Lat, East: lr.Lng, North: ul.Lat}
}

// XYBounds returns the EPSG:3857 bounding box of the tile in meters.
func (t Tile) XYBounds() Bbox {
	tileSize := EarthCircumference / math.Exp2(float64(t.Z))
	left := float64(t.X)*tileSize - OriginShift
	top := OriginShift - float64(t.Y)*tileSize
	return Bbox{Left: left, Bottom: top - tileSize, Right: left + tileSize, Top: top}
}

// Center returns the center of the tile.
func (t Tile) Center() LngLat {
	return t.Bounds().Center()
}

// Parent returns the tile's parent, or false for the root tile.
func (t Tile) Parent() (Tile, bool) {
	if t.Z == 0 {
		return Tile{}, false
	}
	return Tile{X: t.X >> 1, Y: t.Y >> 1, Z: t.Z - 1}, true
}

// ParentAtZoom returns the ancestor at the given zoom.
func (t Tile) ParentAtZoom(zoom int) (Tile, error) {
	if zoom < 0 || zoom > t.Z {
		return Tile{}, fmt.Errorf("%w: %d is not an ancestor zoom of %s", ErrInvalidZoom, zoom, t)
	}
	shift := uint(t.Z - zoom)
	return Tile{X: t.X >> shift, Y: t.Y >> shift, Z: zoom}, nil
}

// Children returns the four subtiles at zoom z+1. With zorder the last two
// children swap so the order follows the z-curve.
func (t Tile) Children(zorder bool) []Tile {
	x, y, z := t.X*2, t.Y*2, t.Z+1
	if zorder {
		return []Tile{
			{X: x, Y: y, Z: z},
			{X: x + 1, Y: y, Z: z},
			{X: x, Y: y + 1, Z: z},
			{X: x + 1, Y: y + 1, Z: z},
		}
	}
	return []Tile{
		{X: x, Y: y, Z: z},
		{X: x + 1, Y: y, Z: z},
		{X: x + 1, Y: y + 1, Z: z},
		{X: x, Y: y + 1, Z: z},
	}
}

// ChildrenAtZoom expands the tile to all descendants at the given zoom.
func (t Tile) ChildrenAtZoom(zoom int) ([]Tile, error) {
	if zoom < t.Z || zoom > MaxZoom {
		return nil, fmt.Errorf("%w: %d is not a descendant zoom of %s", ErrInvalidZoom, zoom, t)
	}
	tiles := []Tile{t}
	for len(tiles) > 0 && tiles[0].Z < zoom {
		next := make([]Tile, 0, len(tiles)*4)
		for _, tt := range tiles {
			next = append(next, tt.Children(false)...)
		}
		tiles = next
	}
	return tiles, nil
}

// Neighbors returns the valid tiles adjacent to t at the same zoom. The
// result is row-major from the northwest neighbor; corner and edge tiles
// yield fewer than eight.
func (t Tile) Neighbors() []Tile {
	var out []Tile
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Tile{X: t.X + dx, Y: t.Y + dy, Z: t.Z}
			if n.Valid() {
				out = append(out, n)
			}
		}
	}
	return out
}

// FmtZxy formats the tile as "z/x/y".
func (t Tile) FmtZxy() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// FmtZxyExt formats the tile as "z/x/y.ext".
func (t Tile) FmtZxyExt(ext string) string {
	return fmt.Sprintf("%d/%d/%d.%s", t.Z, t.X, t.Y, ext)
}

// JSONArr formats the tile as a JSON array "[x, y, z]".
func (t Tile) JSONArr() string {
	return fmt.Sprintf("[%d, %d, %d]", t.X, t.Y, t.Z)
}

func (t Tile) String() string {
	return fmt.Sprintf("Tile(x=%d, y=%d, z=%d)", t.X, t.Y, t.Z)
}

// TileFromLngLat returns the tile containing (lng, lat) at the given zoom.
func TileFromLngLat(lng, lat float64, zoom int, truncate bool) (Tile, error) {
	if truncate {
		lng, lat = TruncateLngLat(lng, lat)
	}
	if zoom < 0 || zoom > MaxZoom {
		return Tile{}, fmt.Errorf("%w: %d", ErrInvalidZoom, zoom)
	}
	if lng < -180.0 || lng > 180.0 {
		return Tile{}, fmt.Errorf("%w: %g", ErrInvalidLng, lng)
	}
	if lat <= -90.0 || lat >= 90.0 {
		return Tile{}, fmt.Errorf("%w: %g", ErrInvalidLat, lat)
	}
	fx, fy := xyFrac(lng, lat)
	n := math.Exp2(float64(zoom))
	x := int(math.Floor(fx * n))
	y := int(math.Floor(fy * n))
	max := int(n) - 1
	if x < 0 {
		x = 0
	} else if x > max {
		x = max
	}
	if y < 0 {
		y = 0
	} else if y > max {
		y = max
	}
	return Tile{X: x, Y: y, Z: zoom}, nil
}

// MinMax returns the valid coordinate range (0, 2^z - 1) at a zoom.
func MinMax(zoom int) (int, int) {
	return 0, (1 << uint(zoom)) - 1
}
