package mbtiles

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// AggHashResult is the aggregate digest over an ordered tile sequence.
type AggHashResult struct {
	Hash      string `json:"hash"`
	Ntiles    int64  `json:"ntiles"`
	SizeBytes int64  `json:"size_bytes"`
	Minzoom   int    `json:"minzoom"`
	Maxzoom   int    `json:"maxzoom"`
}

// AggHash digests every payload in canonical (z, x, y) order, optionally
// restricted by a filter. The digest depends only on the tile set, not the
// archive schema or storage order.
func (d *DB) AggHash(f Filter) (*AggHashResult, error) {
	rows, err := d.QueryTiles(f)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	h := md5.New()
	out := &AggHashResult{Minzoom: -1, Maxzoom: -1}
	for {
		row, ok, err := rows.Next()
		if err != nil {
			return nil, fmt.Errorf("agg-hash read failed: %w", err)
		}
		if !ok {
			break
		}
		h.Write(row.Data)
		out.Ntiles++
		out.SizeBytes += int64(len(row.Data))
		if out.Minzoom < 0 || row.Tile.Z < out.Minzoom {
			out.Minzoom = row.Tile.Z
		}
		if row.Tile.Z > out.Maxzoom {
			out.Maxzoom = row.Tile.Z
		}
	}
	out.Hash = strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
	return out, nil
}
