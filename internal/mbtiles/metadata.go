package mbtiles

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/utiles/utiles/internal/core"
)

// MetadataRow is one name/value pair from the metadata table.
type MetadataRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetadataRows returns all metadata rows ordered by name.
func (d *DB) MetadataRows() ([]MetadataRow, error) {
	rows, err := d.db.Query(`SELECT name, value FROM metadata ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()
	var out []MetadataRow
	for rows.Next() {
		var r MetadataRow
		if err := rows.Scan(&r.Name, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MetadataMap returns the metadata as a map. Numeric-looking values stay
// strings; interpretation is up to the caller.
func (d *DB) MetadataMap() (map[string]string, error) {
	rows, err := d.MetadataRows()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

// Metadata returns one metadata value.
func (d *DB) Metadata(name string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM metadata WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: metadata key %q", core.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query metadata %q: %w", name, err)
	}
	return value, nil
}

// SetMetadata inserts or replaces one metadata value.
func (d *DB) SetMetadata(name, value string) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)`, name, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", name, err)
	}
	return nil
}

// SetMetadataAll applies every pair in the map.
func (d *DB) SetMetadataAll(values map[string]string) error {
	for name, value := range values {
		if err := d.SetMetadata(name, value); err != nil {
			return err
		}
	}
	return nil
}

// MetadataMinMaxZoom returns the minzoom/maxzoom metadata values, ok=false
// when either key is absent or malformed.
func (d *DB) MetadataMinMaxZoom() (minzoom, maxzoom int, ok bool) {
	minStr, err := d.Metadata("minzoom")
	if err != nil {
		return 0, 0, false
	}
	maxStr, err := d.Metadata("maxzoom")
	if err != nil {
		return 0, 0, false
	}
	minzoom, errMin := strconv.Atoi(minStr)
	maxzoom, errMax := strconv.Atoi(maxStr)
	if errMin != nil || errMax != nil {
		return 0, 0, false
	}
	return minzoom, maxzoom, true
}

// MetadataBounds parses the bounds metadata value.
func (d *DB) MetadataBounds() (core.LngLatBbox, bool) {
	s, err := d.Metadata("bounds")
	if err != nil {
		return core.LngLatBbox{}, false
	}
	bbox, err := core.ParseBbox(s)
	if err != nil {
		return core.LngLatBbox{}, false
	}
	return bbox, true
}
