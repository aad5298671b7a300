package mbtiles

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/utiles/utiles/internal/core"
)

// Filter restricts a tile query. A negative MinZoom or MaxZoom means
// unbounded on that side (a MaxZoom of 0 keeps only zoom 0); a nil bbox means
// the whole world.
type Filter struct {
	Bbox    *core.LngLatBbox
	MinZoom int
	MaxZoom int
}

// NewFilter returns an unbounded filter.
func NewFilter() Filter {
	return Filter{MinZoom: 0, MaxZoom: core.MaxZoom}
}

// TileRow is one tile streamed out of an archive, in XYZ convention.
type TileRow struct {
	Tile core.Tile
	Data []byte
}

// Rows streams tiles matching a filter. Callers must drain or Close the
// returned cursor.
type Rows struct {
	rows *sql.Rows
}

// Next advances to the next tile. It returns false at the end of the set.
func (r *Rows) Next() (TileRow, bool, error) {
	if !r.rows.Next() {
		return TileRow{}, false, r.rows.Err()
	}
	var z, x, tmsY int
	var data []byte
	if err := r.rows.Scan(&z, &x, &tmsY, &data); err != nil {
		return TileRow{}, false, fmt.Errorf("failed to scan tile row: %w", err)
	}
	return TileRow{Tile: core.Tile{X: x, Y: flipY(z, tmsY), Z: z}, Data: data}, true, nil
}

// Close releases the cursor.
func (r *Rows) Close() error { return r.rows.Close() }

// QueryTiles streams tiles from the canonical tiles relation in
// (zoom, column, xyz-row) order, with the filter pushed down to SQL.
func (d *DB) QueryTiles(f Filter) (*Rows, error) {
	where, args := d.filterSQL(f)
	q := `SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles` +
		where + ` ORDER BY zoom_level, tile_column, tile_row DESC`
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiles: %w", err)
	}
	return &Rows{rows: rows}, nil
}

// filterSQL renders a filter as a WHERE clause. Bbox predicates expand to a
// per-zoom (column, row) window since the row range depends on the zoom.
func (d *DB) filterSQL(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	minz, maxz := f.MinZoom, f.MaxZoom
	if minz < 0 {
		minz = 0
	}
	if maxz < 0 || maxz > core.MaxZoom {
		maxz = core.MaxZoom
	}
	if minz > 0 || maxz < core.MaxZoom {
		conds = append(conds, "zoom_level >= ? AND zoom_level <= ?")
		args = append(args, minz, maxz)
	}

	if f.Bbox != nil {
		dbMin, dbMax, ok := d.zoomExtent()
		if ok {
			if dbMin > minz {
				minz = dbMin
			}
			if dbMax < maxz {
				maxz = dbMax
			}
			var windows []string
			for z := minz; z <= maxz; z++ {
				for _, box := range f.Bbox.Split() {
					ul, lr := core.TileRangeForBbox(box, z)
					windows = append(windows,
						"(zoom_level = ? AND tile_column >= ? AND tile_column <= ? AND tile_row >= ? AND tile_row <= ?)")
					// TMS rows: the XYZ window flips and swaps.
					args = append(args, z, ul.X, lr.X, flipY(z, lr.Y), flipY(z, ul.Y))
				}
			}
			if len(windows) > 0 {
				conds = append(conds, "("+strings.Join(windows, " OR ")+")")
			}
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ZoomExtent returns the zoom range present in the archive, ok=false when
// it holds no tiles.
func (d *DB) ZoomExtent() (minz, maxz int, ok bool) {
	return d.zoomExtent()
}

// zoomExtent returns the zoom range present in the archive.
func (d *DB) zoomExtent() (minz, maxz int, ok bool) {
	var minv, maxv sql.NullInt64
	err := d.db.QueryRow(`SELECT min(zoom_level), max(zoom_level) FROM tiles`).Scan(&minv, &maxv)
	if err != nil || !minv.Valid || !maxv.Valid {
		return 0, 0, false
	}
	return int(minv.Int64), int(maxv.Int64), true
}

// GetTile fetches one tile payload.
func (d *DB) GetTile(t core.Tile) ([]byte, error) {
	var data []byte
	err := d.db.QueryRow(
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		t.Z, t.X, flipY(t.Z, t.Y),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tile %s", core.ErrNotFound, t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", t, err)
	}
	return data, nil
}

// HasTile reports whether the archive stores a tile.
func (d *DB) HasTile(t core.Tile) (bool, error) {
	var one int
	err := d.db.QueryRow(
		`SELECT 1 FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		t.Z, t.X, flipY(t.Z, t.Y),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe tile %s: %w", t, err)
	}
	return true, nil
}

// TableCount returns COUNT(*) of one of the archive's relations.
func (d *DB) TableCount(table string) (int64, error) {
	switch table {
	case "tiles", "tiles_with_hash", "map", "images", "metadata":
	default:
		return 0, fmt.Errorf("unknown relation: %q", table)
	}
	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// CountTiles counts tiles matching a filter.
func (d *DB) CountTiles(f Filter) (int64, error) {
	where, args := d.filterSQL(f)
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM tiles`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tiles: %w", err)
	}
	return n, nil
}
