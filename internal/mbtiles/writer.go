package mbtiles

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/utiles/utiles/internal/cache"
	"github.com/utiles/utiles/internal/core"
)

// Conflict is the duplicate-key policy applied while writing tiles.
type Conflict string

const (
	ConflictThrow   Conflict = "throw"
	ConflictIgnore  Conflict = "ignore"
	ConflictReplace Conflict = "replace"
)

// ParseConflict validates a conflict policy name. The empty string maps to
// throw.
func ParseConflict(s string) (Conflict, error) {
	switch Conflict(s) {
	case ConflictThrow, ConflictIgnore, ConflictReplace:
		return Conflict(s), nil
	case "":
		return ConflictThrow, nil
	}
	return "", fmt.Errorf("unknown conflict policy: %q", s)
}

func (c Conflict) insertClause() string {
	switch c {
	case ConflictIgnore:
		return "INSERT OR IGNORE"
	case ConflictReplace:
		return "INSERT OR REPLACE"
	}
	return "INSERT"
}

// dedupCacheSize bounds the hash cache; a miss only costs a redundant
// INSERT OR IGNORE against the images table.
const dedupCacheSize = 1 << 16

// Writer batches tile inserts into transactions. It is not safe for
// concurrent use; the copy engine funnels all writes through one writer.
type Writer struct {
	d         *DB
	tx        *sql.Tx
	conflict  Conflict
	batchSize int
	pending   int
	total     int64
	dedup     *cache.DedupCache
}

// NewWriter starts a batched writer. The WAL journal and relaxed sync stay
// in effect until Close.
func (d *DB) NewWriter(conflict Conflict, batchSize int) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := d.db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	w := &Writer{d: d, conflict: conflict, batchSize: batchSize}
	if d.dbtype == Hash || d.dbtype == Norm {
		dedup, err := cache.NewDedupCache(dedupCacheSize)
		if err != nil {
			return nil, err
		}
		w.dedup = dedup
	}
	return w, nil
}

// Put writes one XYZ tile. Batches commit every batchSize tiles.
func (w *Writer) Put(t core.Tile, data []byte) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", core.ErrInvalidTile, t)
	}
	if w.tx == nil {
		tx, err := w.d.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		w.tx = tx
	}

	tmsY := flipY(t.Z, t.Y)
	var err error
	switch w.d.dbtype {
	case Hash:
		hash := md5hex(data)
		_, err = w.tx.Exec(
			w.conflict.insertClause()+` INTO tiles_with_hash (zoom_level, tile_column, tile_row, tile_data, tile_hash) VALUES (?, ?, ?, ?, ?)`,
			t.Z, t.X, tmsY, data, hash,
		)
	case Norm:
		tileID := md5hex(data)
		if w.dedup == nil || !w.dedup.Seen(tileID) {
			_, err = w.tx.Exec(`INSERT OR IGNORE INTO images (tile_id, tile_data) VALUES (?, ?)`, tileID, data)
		}
		if err == nil {
			_, err = w.tx.Exec(
				w.conflict.insertClause()+` INTO map (zoom_level, tile_column, tile_row, tile_id) VALUES (?, ?, ?, ?)`,
				t.Z, t.X, tmsY, tileID,
			)
		}
	default:
		_, err = w.tx.Exec(
			w.conflict.insertClause()+` INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
			t.Z, t.X, tmsY, data,
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: tile %s already present", core.ErrWriteConflict, t)
		}
		return fmt.Errorf("failed to insert tile %s: %w", t, err)
	}

	w.pending++
	w.total++
	if w.pending >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush commits the open transaction.
func (w *Writer) Flush() error {
	if w.tx == nil {
		return nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	log.Debugf("Committed batch of %d tiles (total %d)", w.pending, w.total)
	w.tx = nil
	w.pending = 0
	return nil
}

// Rollback abandons the open transaction, leaving the archive at its last
// committed batch.
func (w *Writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx = nil
	w.pending = 0
	// Hashes recorded in the abandoned transaction were never stored.
	if w.dedup != nil {
		w.dedup.Clear()
	}
	return err
}

// Total returns the number of tiles written (committed or pending).
func (w *Writer) Total() int64 { return w.total }

// Close commits pending tiles and restores the journal defaults.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.dedup != nil {
		stats := w.dedup.Stats()
		log.Debugf("Dedup cache: hits=%d misses=%d hit_rate=%.1f%%", stats.Hits, stats.Misses, stats.HitRate)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = FULL",
	} {
		if _, err := w.d.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to restore pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Analyze refreshes the query planner statistics after a bulk load.
func (d *DB) Analyze() error {
	if _, err := d.db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze: %w", err)
	}
	return nil
}

// CopyFrom bulk-copies every tile from src via ATTACH + INSERT ... SELECT in
// one transaction. Both archives must share a schema and dst must not
// already contain any of the copied keys unless the policy permits.
func (d *DB) CopyFrom(src *DB, conflict Conflict) (int64, error) {
	if src.dbtype != d.dbtype {
		return 0, fmt.Errorf("schema mismatch: %s vs %s", src.dbtype, d.dbtype)
	}
	if _, err := d.db.Exec(`ATTACH DATABASE ? AS src`, src.path); err != nil {
		return 0, fmt.Errorf("failed to attach %s: %w", src.path, err)
	}
	defer d.db.Exec(`DETACH DATABASE src`)

	var stmts []string
	clause := conflict.insertClause()
	switch d.dbtype {
	case Hash:
		stmts = []string{clause + ` INTO tiles_with_hash SELECT * FROM src.tiles_with_hash`}
	case Norm:
		stmts = []string{
			`INSERT OR IGNORE INTO images SELECT tile_id, tile_data FROM src.images`,
			clause + ` INTO map SELECT * FROM src.map`,
		}
	default:
		stmts = []string{clause + ` INTO tiles SELECT * FROM src.tiles`}
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var copied int64
	for _, stmt := range stmts {
		res, err := tx.Exec(stmt)
		if err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("%w: destination already has overlapping tiles", core.ErrWriteConflict)
			}
			return 0, fmt.Errorf("fast copy failed: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			copied = n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fast copy: %w", err)
	}
	log.Infof("Fast-copied %d tiles from %s", copied, src.path)
	return copied, nil
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
