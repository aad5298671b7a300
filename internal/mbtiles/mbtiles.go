// Package mbtiles creates, inspects and streams MBTiles archives in their
// three schemas: flat (plain tiles table), hash (tiles_with_hash + view) and
// norm (map + images joined by a view). All schemas expose the canonical
// tiles view, and all in-memory tiles are XYZ; the TMS y flip happens at the
// SQL boundary.
package mbtiles

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // sqlite3 database driver
	log "github.com/sirupsen/logrus"

	"github.com/utiles/utiles/internal/core"
)

// ApplicationID is the SQLite application_id of MBTiles files ("MPBX").
const ApplicationID = 0x4D504258

// UserVersion is the SQLite user_version written to new archives.
const UserVersion = 3

// DbType identifies the archive schema.
type DbType string

const (
	Flat DbType = "flat"
	Hash DbType = "hash"
	Norm DbType = "norm"
)

// ParseDbType validates a schema name.
func ParseDbType(s string) (DbType, error) {
	switch DbType(s) {
	case Flat, Hash, Norm:
		return DbType(s), nil
	}
	return "", fmt.Errorf("unknown mbtiles schema: %q", s)
}

// DB is an open MBTiles archive.
type DB struct {
	db     *sql.DB
	path   string
	dbtype DbType
}

// Open opens an existing archive and detects its schema.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	d := &DB{db: db, path: path}
	d.dbtype, err = detectSchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened mbtiles %s (schema=%s)", path, d.dbtype)
	return d, nil
}

// Create makes a new archive with the given schema. The page size must be a
// power of two in [512, 65536].
func Create(path string, dbtype DbType, pageSize int) (*DB, error) {
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", core.ErrWriteConflict, path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", path, err)
	}

	setup := []string{
		fmt.Sprintf("PRAGMA page_size = %d", pageSize),
		fmt.Sprintf("PRAGMA application_id = %d", ApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", UserVersion),
	}
	for _, pragma := range setup {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL(dbtype)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create %s schema: %w", dbtype, err)
	}

	d := &DB{db: db, path: path, dbtype: dbtype}
	if err := d.SetMetadata("name", stem(path)); err != nil {
		db.Close()
		return nil, err
	}
	// Shrink to final size so a fresh archive is fully materialized on disk.
	if _, err := db.Exec("VACUUM"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to vacuum new database: %w", err)
	}
	log.Infof("Created mbtiles %s (schema=%s page_size=%d)", path, dbtype, pageSize)
	return d, nil
}

func validatePageSize(pageSize int) error {
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("invalid page size %d: must be a power of two in [512, 65536]", pageSize)
	}
	return nil
}

func schemaSQL(dbtype DbType) string {
	switch dbtype {
	case Hash:
		return `
		CREATE TABLE metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);
		CREATE TABLE tiles_with_hash (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB,
			tile_hash TEXT,
			PRIMARY KEY (zoom_level, tile_column, tile_row)
		);
		CREATE INDEX tiles_with_hash_hash_index ON tiles_with_hash (tile_hash);
		CREATE VIEW tiles AS
		SELECT
			zoom_level,
			tile_column,
			tile_row,
			tile_data
		FROM tiles_with_hash;
		`
	case Norm:
		return `
		CREATE TABLE metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);
		CREATE TABLE map (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_id TEXT
		);
		CREATE UNIQUE INDEX map_index ON map (zoom_level, tile_column, tile_row);
		CREATE TABLE images (
			tile_id TEXT NOT NULL PRIMARY KEY,
			tile_data BLOB NOT NULL
		);
		CREATE VIEW tiles AS
		SELECT
			map.zoom_level AS zoom_level,
			map.tile_column AS tile_column,
			map.tile_row AS tile_row,
			images.tile_data AS tile_data
		FROM map
		JOIN images ON images.tile_id = map.tile_id;
		`
	default:
		return `
		CREATE TABLE metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);
		CREATE TABLE tiles (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB
		);
		CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
		`
	}
}

// detectSchema inspects sqlite_master: tiles_with_hash means hash, map plus
// images means norm, anything else with a tiles relation is flat.
func detectSchema(db *sql.DB) (DbType, error) {
	names := make(map[string]bool)
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type IN ('table', 'view')`)
	if err != nil {
		return "", fmt.Errorf("failed to inspect schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("failed to inspect schema: %w", err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to inspect schema: %w", err)
	}
	switch {
	case names["tiles_with_hash"]:
		return Hash, nil
	case names["map"] && names["images"]:
		return Norm, nil
	case names["tiles"]:
		return Flat, nil
	}
	return "", fmt.Errorf("%s is not an mbtiles archive: no tiles relation", "sqlite_master")
}

// Path returns the archive's filesystem path.
func (d *DB) Path() string { return d.path }

// DbType returns the detected schema.
func (d *DB) DbType() DbType { return d.dbtype }

// Close closes the underlying database.
func (d *DB) Close() error { return d.db.Close() }

// flipY converts between XYZ and TMS rows; the mapping is its own inverse.
func flipY(z, y int) int {
	return (1 << uint(z)) - 1 - y
}

func stem(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
