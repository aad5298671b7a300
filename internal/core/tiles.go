package core

import (
	"fmt"
	"iter"
)

// llEpsilon pulls the north, east and south edges inward so a bbox edge lying
// exactly on a tile border does not pull in the neighboring tile.
const llEpsilon = 1e-11

// TileRangeForBbox returns the inclusive (x, y) tile window of a
// non-crossing bbox at one zoom, clamped to the square world.
func TileRangeForBbox(b LngLatBbox, zoom int) (ul, lr Tile) {
	return tileRange(b, zoom)
}

// tileRange returns the inclusive (x, y) tile window of a non-crossing bbox
// at one zoom.
func tileRange(b LngLatBbox, zoom int) (ul, lr Tile) {
	w, s, e, n := b.West, b.South, b.East, b.North
	if w < -180.0 {
		w = -180.0
	}
	if s < -MaxLat {
		s = -MaxLat
	}
	if e > 180.0 {
		e = 180.0
	}
	if n > MaxLat {
		n = MaxLat
	}
	ul, _ = TileFromLngLat(w, n-llEpsilon, zoom, false)
	lr, _ = TileFromLngLat(e-llEpsilon, s+llEpsilon, zoom, false)
	return ul, lr
}

// Tiles yields every tile at each given zoom whose interior intersects the
// bbox. Antimeridian-crossing boxes are split at +/-180 and the halves
// concatenated. The sequence is finite and restartable.
func Tiles(bbox LngLatBbox, zooms []int) iter.Seq[Tile] {
	boxes := bbox.Split()
	return func(yield func(Tile) bool) {
		for _, box := range boxes {
			for _, z := range zooms {
				ul, lr := tileRange(box, z)
				for x := ul.X; x <= lr.X; x++ {
					for y := ul.Y; y <= lr.Y; y++ {
						if !yield(Tile{X: x, Y: y, Z: z}) {
							return
						}
					}
				}
			}
		}
	}
}

// TilesList materializes Tiles.
func TilesList(bbox LngLatBbox, zooms []int) []Tile {
	var out []Tile
	for t := range Tiles(bbox, zooms) {
		out = append(out, t)
	}
	return out
}

// TilesCount returns the number of tiles Tiles would yield without
// producing them.
func TilesCount(bbox LngLatBbox, zooms []int) uint64 {
	var count uint64
	for _, box := range bbox.Split() {
		for _, z := range zooms {
			ul, lr := tileRange(box, z)
			count += uint64(lr.X-ul.X+1) * uint64(lr.Y-ul.Y+1)
		}
	}
	return count
}

// ValidateZooms checks a zoom list for range and ascending order.
func ValidateZooms(zooms []int) error {
	prev := -1
	for _, z := range zooms {
		if z < 0 || z > MaxZoom {
			return fmt.Errorf("%w: %d", ErrInvalidZoom, z)
		}
		if z <= prev {
			return fmt.Errorf("%w: zooms must be ascending", ErrInvalidZoom)
		}
		prev = z
	}
	return nil
}

// BoundingTile returns the deepest single tile whose bounds contain the
// bbox. Antimeridian-crossing boxes are only contained by the root tile.
func BoundingTile(bbox LngLatBbox) (Tile, error) {
	if bbox.CrossesAntimeridian() {
		return Tile{}, nil
	}
	w, s := TruncateLngLat(bbox.West, bbox.South)
	e, n := TruncateLngLat(bbox.East, bbox.North)
	e -= llEpsilon
	s += llEpsilon

	tmin, err := TileFromLngLat(w, n, MaxZoom, true)
	if err != nil {
		return Tile{}, nil
	}
	tmax, err := TileFromLngLat(e, s, MaxZoom, true)
	if err != nil {
		return Tile{}, nil
	}
	z := bboxZoom(tmin, tmax)
	if z == 0 {
		return Tile{}, nil
	}
	return Tile{X: tmin.X >> uint(MaxZoom-z), Y: tmin.Y >> uint(MaxZoom-z), Z: z}, nil
}

// bboxZoom finds the deepest zoom at which both corner tiles still share a
// coordinate prefix.
func bboxZoom(tmin, tmax Tile) int {
	const maxCommon = 28
	for z := 0; z < maxCommon; z++ {
		mask := 1 << uint(MaxZoom-(z+1))
		if tmin.X&mask != tmax.X&mask || tmin.Y&mask != tmax.Y&mask {
			return z
		}
	}
	return maxCommon
}
