package mbtiles

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/utiles/utiles/internal/core"
	"github.com/utiles/utiles/internal/tiletype"
)

// UpdateResult reports which metadata keys Update rewrote.
type UpdateResult struct {
	Changed map[string]string `json:"changed"`
}

// Update re-derives the metadata keys from the archive contents: format from
// the majority tile type, minzoom/maxzoom from the stored zoom range, bounds
// from the union of tile extents and center from the bounds centroid at
// minzoom. Individual failures are logged and skipped; minzoom/maxzoom are
// the only keys treated as required.
func (d *DB) Update() (*UpdateResult, error) {
	out := &UpdateResult{Changed: map[string]string{}}

	minz, maxz, ok := d.zoomExtent()
	if !ok {
		log.Warnf("Archive %s has no tiles; leaving metadata untouched", d.path)
		return out, nil
	}
	if err := d.SetMetadata("minzoom", strconv.Itoa(minz)); err != nil {
		return out, err
	}
	out.Changed["minzoom"] = strconv.Itoa(minz)
	if err := d.SetMetadata("maxzoom", strconv.Itoa(maxz)); err != nil {
		return out, err
	}
	out.Changed["maxzoom"] = strconv.Itoa(maxz)

	if format, err := d.majorityFormat(); err != nil {
		log.Warnf("Could not derive tile format: %v", err)
	} else if format != tiletype.FormatUnknown {
		if err := d.SetMetadata("format", format.String()); err != nil {
			log.Warnf("Could not write format metadata: %v", err)
		} else {
			out.Changed["format"] = format.String()
		}
	}

	bounds, err := d.tileBounds()
	if err != nil {
		log.Warnf("Could not derive bounds: %v", err)
		return out, nil
	}
	boundsStr := bounds.String()
	if err := d.SetMetadata("bounds", boundsStr); err != nil {
		log.Warnf("Could not write bounds metadata: %v", err)
	} else {
		out.Changed["bounds"] = boundsStr
	}

	center := bounds.Center()
	centerStr := fmt.Sprintf("%g,%g,%d", center.Lng, center.Lat, minz)
	if err := d.SetMetadata("center", centerStr); err != nil {
		log.Warnf("Could not write center metadata: %v", err)
	} else {
		out.Changed["center"] = centerStr
	}
	return out, nil
}

// majorityFormat sniffs every payload and returns the most common format.
func (d *DB) majorityFormat() (tiletype.Format, error) {
	rows, err := d.db.Query(`SELECT tile_data FROM tiles`)
	if err != nil {
		return tiletype.FormatUnknown, fmt.Errorf("failed to query payloads: %w", err)
	}
	defer rows.Close()

	counts := make(map[tiletype.Format]int)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return tiletype.FormatUnknown, fmt.Errorf("failed to scan payload: %w", err)
		}
		counts[tiletype.SniffDeep(data).Format]++
	}
	if err := rows.Err(); err != nil {
		return tiletype.FormatUnknown, err
	}

	best := tiletype.FormatUnknown
	bestCount := 0
	for format, n := range counts {
		if n > bestCount {
			best, bestCount = format, n
		}
	}
	return best, nil
}

// tileBounds unions the geographic extents of every zoom level.
func (d *DB) tileBounds() (core.LngLatBbox, error) {
	info, err := d.Info()
	if err != nil {
		return core.LngLatBbox{}, err
	}
	if len(info.Zooms) == 0 {
		return core.LngLatBbox{}, fmt.Errorf("%w: archive has no tiles", core.ErrNotFound)
	}
	var union core.LngLatBbox
	for i, zi := range info.Zooms {
		nw := core.Tile{X: zi.Xmin, Y: zi.Ymin, Z: zi.Zoom}.Bounds()
		se := core.Tile{X: zi.Xmax, Y: zi.Ymax, Z: zi.Zoom}.Bounds()
		zb := nw.Union(se)
		if i == 0 {
			union = zb
		} else {
			union = union.Union(zb)
		}
	}
	return union, nil
}
