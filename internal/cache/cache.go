package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			title       TEXT NOT NULL,
			link        TEXT NOT NULL,
			summary     TEXT NOT NULL DEFAULT '',
			published   DATETIME NOT NULL,
			fetched_at  DATETIME NOT NULL,
			score       INTEGER NOT NULL DEFAULT 0,
			primary_cat TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '',
			entities    TEXT NOT NULL DEFAULT '',
			why         TEXT NOT NULL DEFAULT '',
			provenance  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC);
		CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *Store) UpsertItems(items []Item) error {
	tx, err := s.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, source, title, link, summary, published, fetched_at,
		                   score, primary_cat, tags, entities, why, provenance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			fetched_at = excluded.fetched_at,
			score = excluded.score,
			primary_cat = excluded.primary_cat,
			tags = excluded.tags,
			entities = excluded.entities,
			why = excluded.why,
			provenance = excluded.provenance
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		_, err := stmt.Exec(it.ID, it.Source, it.Title, it.Link, it.Summary,
			it.Published, it.FetchedAt, it.Score, it.Primary,
			joinList(it.Tags), joinList(it.Entities), it.Why, it.Provenance)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetItems(opts QueryOpts) ([]Item, error) {
	var (
		where []string
		args  []interface{}
	)

	if !opts.Since.IsZero() {
		where = append(where, "published >= ?")
		args = append(args, opts.Since)
	}

	if len(opts.Sources) > 0 {
		placeholders := make([]string, len(opts.Sources))
		for i, src := range opts.Sources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		where = append(where, "source IN ("+strings.Join(placeholders, ",")+")")
	}

	query := `SELECT id, source, title, link, summary, published, fetched_at,
	                 score, primary_cat, tags, entities, why, provenance FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var tags, entities string
		if err := rows.Scan(&it.ID, &it.Source, &it.Title, &it.Link, &it.Summary,
			&it.Published, &it.FetchedAt, &it.Score, &it.Primary,
			&tags, &entities, &it.Why, &it.Provenance); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Tags = splitList(tags)
		it.Entities = splitList(entities)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Prune deletes items published before now-retention and returns the count.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.writeDB.Exec("DELETE FROM items WHERE published < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns the item count and the store file size.
func (s *Store) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := s.readDB.QueryRow("SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, err
	}
	return count, info.Size(), nil
}

func joinList(parts []string) string {
	return strings.Join(parts, ",")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
