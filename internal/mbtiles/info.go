package mbtiles

import (
	"fmt"
	"os"
)

// ZoomInfo summarizes one zoom level of an archive, in XYZ convention.
type ZoomInfo struct {
	Zoom   int   `json:"zoom"`
	Ntiles int64 `json:"ntiles"`
	Xmin   int   `json:"xmin"`
	Xmax   int   `json:"xmax"`
	Ymin   int   `json:"ymin"`
	Ymax   int   `json:"ymax"`
	Nbytes int64 `json:"nbytes"`
}

// InfoResult is the archive summary emitted by the info command.
type InfoResult struct {
	Filesize      int64      `json:"filesize"`
	Mbtype        string     `json:"mbtype"`
	Ntiles        int64      `json:"ntiles"`
	Nzooms        int        `json:"nzooms"`
	PageCount     int64      `json:"page_count"`
	PageSize      int64      `json:"page_size"`
	FreelistCount int64      `json:"freelist_count"`
	Minzoom       *int       `json:"minzoom"`
	Maxzoom       *int       `json:"maxzoom"`
	Zooms         []ZoomInfo `json:"zooms"`
}

// Info gathers file, pragma and per-zoom statistics.
func (d *DB) Info() (*InfoResult, error) {
	out := &InfoResult{Mbtype: string(d.dbtype), Zooms: []ZoomInfo{}}

	fi, err := os.Stat(d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	out.Filesize = fi.Size()

	for pragma, dst := range map[string]*int64{
		"page_count":     &out.PageCount,
		"page_size":      &out.PageSize,
		"freelist_count": &out.FreelistCount,
	} {
		if err := d.db.QueryRow("PRAGMA " + pragma).Scan(dst); err != nil {
			return nil, fmt.Errorf("failed to read pragma %s: %w", pragma, err)
		}
	}

	rows, err := d.db.Query(`
		SELECT
			zoom_level,
			COUNT(*),
			MIN(tile_column), MAX(tile_column),
			MIN(tile_row), MAX(tile_row),
			COALESCE(SUM(LENGTH(tile_data)), 0)
		FROM tiles
		GROUP BY zoom_level
		ORDER BY zoom_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zoom stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var zi ZoomInfo
		var tmsMin, tmsMax int
		if err := rows.Scan(&zi.Zoom, &zi.Ntiles, &zi.Xmin, &zi.Xmax, &tmsMin, &tmsMax, &zi.Nbytes); err != nil {
			return nil, fmt.Errorf("failed to scan zoom stats: %w", err)
		}
		// Row extents flip and swap between TMS storage and XYZ reporting.
		zi.Ymin = flipY(zi.Zoom, tmsMax)
		zi.Ymax = flipY(zi.Zoom, tmsMin)
		out.Zooms = append(out.Zooms, zi)
		out.Ntiles += zi.Ntiles
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate zoom stats: %w", err)
	}

	out.Nzooms = len(out.Zooms)
	if out.Nzooms > 0 {
		minz := out.Zooms[0].Zoom
		maxz := out.Zooms[len(out.Zooms)-1].Zoom
		out.Minzoom = &minz
		out.Maxzoom = &maxz
	}
	return out, nil
}
