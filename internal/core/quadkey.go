package core

import (
	"fmt"
	"strings"
)

// Quadkey encodes the tile as its quadkey string. The root tile encodes to
// the empty string.
func (t Tile) Quadkey() string {
	var sb strings.Builder
	sb.Grow(t.Z)
	for i := t.Z - 1; i >= 0; i-- {
		digit := byte('0')
		mask := 1 << uint(i)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// QuadkeyToTile decodes a quadkey string into a tile.
func QuadkeyToTile(qk string) (Tile, error) {
	x, y := 0, 0
	for i := 0; i < len(qk); i++ {
		x <<= 1
		y <<= 1
		switch qk[i] {
		case '0':
		case '1':
			x |= 1
		case '2':
			y |= 1
		case '3':
			x |= 1
			y |= 1
		default:
			return Tile{}, fmt.Errorf("%w: %q", ErrBadQuadkey, qk)
		}
	}
	return Tile{X: x, Y: y, Z: len(qk)}, nil
}
