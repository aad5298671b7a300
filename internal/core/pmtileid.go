package core

import "fmt"

// zoomOffset returns the number of tiles in all zooms below z, which is the
// first PMTiles ID of zoom z: (4^z - 1) / 3.
func zoomOffset(z int) uint64 {
	return (uint64(1)<<(2*uint(z)) - 1) / 3
}

// PmtileID returns the Hilbert-order PMTiles ID of the tile.
// PmtileID of (0, 0, 0) is 0, of (0, 0, 1) is 1.
func (t Tile) PmtileID() uint64 {
	x, y := uint64(t.X), uint64(t.Y)
	var d uint64
	for s := uint64(1) << uint(t.Z) / 2; s > 0; s >>= 1 {
		var rx, ry uint64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		// Rotate the 2s x 2s quadrant.
		if ry == 0 {
			if rx == 1 {
				x = s*2 - 1 - x
				y = s*2 - 1 - y
			}
			x, y = y, x
		}
	}
	return zoomOffset(t.Z) + d
}

// TileFromPmtileID inverts PmtileID.
func TileFromPmtileID(id uint64) (Tile, error) {
	z := 0
	for z <= MaxZoom && zoomOffset(z+1) <= id {
		z++
	}
	if z > MaxZoom {
		return Tile{}, fmt.Errorf("%w: pmtileid %d out of range", ErrInvalidTile, id)
	}
	d := id - zoomOffset(z)
	n := uint64(1) << uint(z)
	var x, y uint64
	for s := uint64(1); s < n; s <<= 1 {
		rx := 1 & (d / 2)
		ry := 1 & (d ^ rx)
		// Rotate the s x s quadrant the point currently occupies.
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		d /= 4
	}
	return Tile{X: int(x), Y: int(y), Z: z}, nil
}
