package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/partyrank/internal/domain/model"
)

// SQLiteStore implements PartyStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and applies the schema.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS parties (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	ranked_at  INTEGER
);

CREATE TABLE IF NOT EXISTS candidates (
	party_id       TEXT NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
	id             TEXT NOT NULL,
	position       INTEGER NOT NULL,
	title          TEXT NOT NULL,
	genres         TEXT NOT NULL DEFAULT '[]',
	expected_score REAL NOT NULL,
	PRIMARY KEY (party_id, id)
);

CREATE TABLE IF NOT EXISTS swipes (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	party_id     TEXT NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
	member_id    TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	direction    TEXT NOT NULL,
	ts           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS consensus (
	party_id     TEXT NOT NULL REFERENCES parties(id) ON DELETE CASCADE,
	candidate_id TEXT NOT NULL,
	rating       REAL NOT NULL,
	PRIMARY KEY (party_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_swipes_party_seq ON swipes(party_id, seq);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutCandidates(ctx context.Context, partyID string, candidates []model.Candidate) error {
	now := time.Now().UTC().UnixNano()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO parties (id, created_at, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, ranked_at = NULL`,
			partyID, now, now,
		); err != nil {
			return fmt.Errorf("sqlite: upsert party %s: %w", partyID, err)
		}
		for _, q := range []string{
			`DELETE FROM candidates WHERE party_id = ?`,
			`DELETE FROM consensus WHERE party_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, partyID); err != nil {
				return fmt.Errorf("sqlite: reset party %s: %w", partyID, err)
			}
		}
		for i, c := range candidates {
			genres, err := json.Marshal(append([]string{}, c.Genres...))
			if err != nil {
				return fmt.Errorf("sqlite: marshal genres: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO candidates (party_id, id, position, title, genres, expected_score) VALUES (?, ?, ?, ?, ?, ?)`,
				partyID, c.ID, i, c.Title, string(genres), c.ExpectedScore,
			); err != nil {
				return fmt.Errorf("sqlite: insert candidate %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Party(ctx context.Context, partyID string) (Party, error) {
	p := Party{ID: partyID}
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at, (SELECT COUNT(*) FROM swipes WHERE party_id = parties.id)
		 FROM parties WHERE id = ?`, partyID,
	).Scan(&created, &updated, &p.SwipeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Party{}, fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	if err != nil {
		return Party{}, fmt.Errorf("sqlite: get party %s: %w", partyID, err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, genres, expected_score FROM candidates WHERE party_id = ? ORDER BY position`,
		partyID,
	)
	if err != nil {
		return Party{}, fmt.Errorf("sqlite: list candidates %s: %w", partyID, err)
	}
	defer rows.Close()

	p.Candidates = []model.Candidate{}
	for rows.Next() {
		var c model.Candidate
		var genres string
		if err := rows.Scan(&c.ID, &c.Title, &genres, &c.ExpectedScore); err != nil {
			return Party{}, fmt.Errorf("sqlite: scan candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(genres), &c.Genres); err != nil {
			return Party{}, fmt.Errorf("sqlite: unmarshal genres: %w", err)
		}
		if len(c.Genres) == 0 {
			c.Genres = nil
		}
		p.Candidates = append(p.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return Party{}, fmt.Errorf("sqlite: list candidates %s: %w", partyID, err)
	}
	return p, nil
}

func (s *SQLiteStore) AppendSwipe(ctx context.Context, partyID string, sw model.Swipe) error {
	var ts int64
	if !sw.TS.IsZero() {
		ts = sw.TS.UTC().UnixNano()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := partyExists(ctx, tx, partyID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO swipes (party_id, member_id, candidate_id, direction, ts) VALUES (?, ?, ?, ?, ?)`,
			partyID, sw.MemberID, sw.CandidateID, string(sw.Direction), ts,
		); err != nil {
			return fmt.Errorf("sqlite: insert swipe: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE parties SET updated_at = ? WHERE id = ?`, time.Now().UTC().UnixNano(), partyID,
		); err != nil {
			return fmt.Errorf("sqlite: touch party %s: %w", partyID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) Swipes(ctx context.Context, partyID string) ([]model.Swipe, error) {
	if err := partyExists(ctx, s.db, partyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, candidate_id, direction, ts FROM swipes WHERE party_id = ? ORDER BY seq`,
		partyID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list swipes %s: %w", partyID, err)
	}
	defer rows.Close()

	var out []model.Swipe
	for rows.Next() {
		var sw model.Swipe
		var dir string
		var ts int64
		if err := rows.Scan(&sw.MemberID, &sw.CandidateID, &dir, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan swipe: %w", err)
		}
		sw.Direction = model.Direction(dir)
		if ts != 0 {
			sw.TS = time.Unix(0, ts).UTC()
		}
		out = append(out, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list swipes %s: %w", partyID, err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveConsensus(ctx context.Context, partyID string, ratings map[string]float64, rankedAt time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := partyExists(ctx, tx, partyID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM consensus WHERE party_id = ?`, partyID); err != nil {
			return fmt.Errorf("sqlite: clear consensus %s: %w", partyID, err)
		}
		for id, rating := range ratings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO consensus (party_id, candidate_id, rating) VALUES (?, ?, ?)`,
				partyID, id, rating,
			); err != nil {
				return fmt.Errorf("sqlite: insert consensus %s/%s: %w", partyID, id, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE parties SET ranked_at = ? WHERE id = ?`, rankedAt.UTC().UnixNano(), partyID,
		); err != nil {
			return fmt.Errorf("sqlite: mark ranked %s: %w", partyID, err)
		}
		return nil
	})
}

func (s *SQLiteStore) Consensus(ctx context.Context, partyID string) (StoredConsensus, error) {
	var rankedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT ranked_at FROM parties WHERE id = ?`, partyID).Scan(&rankedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredConsensus{}, fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	if err != nil {
		return StoredConsensus{}, fmt.Errorf("sqlite: get party %s: %w", partyID, err)
	}
	if !rankedAt.Valid {
		return StoredConsensus{}, fmt.Errorf("party %q: %w", partyID, ErrNotRanked)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, rating FROM consensus WHERE party_id = ?`, partyID,
	)
	if err != nil {
		return StoredConsensus{}, fmt.Errorf("sqlite: list consensus %s: %w", partyID, err)
	}
	defer rows.Close()

	out := StoredConsensus{
		Ratings:  map[string]float64{},
		RankedAt: time.Unix(0, rankedAt.Int64).UTC(),
	}
	for rows.Next() {
		var id string
		var rating float64
		if err := rows.Scan(&id, &rating); err != nil {
			return StoredConsensus{}, fmt.Errorf("sqlite: scan consensus: %w", err)
		}
		out.Ratings[id] = rating
	}
	if err := rows.Err(); err != nil {
		return StoredConsensus{}, fmt.Errorf("sqlite: list consensus %s: %w", partyID, err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteParty(ctx context.Context, partyID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM consensus WHERE party_id = ?`,
			`DELETE FROM swipes WHERE party_id = ?`,
			`DELETE FROM candidates WHERE party_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, partyID); err != nil {
				return fmt.Errorf("sqlite: delete party %s: %w", partyID, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, partyID)
		if err != nil {
			return fmt.Errorf("sqlite: delete party %s: %w", partyID, err)
		}
		return checkRowsAffected(res, partyID)
	})
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count parties: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func partyExists(ctx context.Context, q queryer, partyID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM parties WHERE id = ?`, partyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup party %s: %w", partyID, err)
	}
	return nil
}

func checkRowsAffected(res sql.Result, partyID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	return nil
}
