package shiftstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Store keeps a history of retrieved shift snapshots in a local sqlite
// database, one row per successful retrieval.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

func Open(path string) (*Store, error) {
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), 0777)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open shift store: %w", err)
	}

	// see https://stackoverflow.com/questions/35804884 for why sqlite
	// writes want a single connection + WAL
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open shift store: %w", err)
	}
	_, err = db.Exec(Schema)
	if err != nil {
		return nil, fmt.Errorf("migrate shift store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type Snapshot struct {
	TakenAt  time.Time
	DateFrom string
	DateTo   string
	Records  []vinnustund.ShiftRecord
}

func (s *Store) Push(ctx context.Context, snap Snapshot) error {
	records, err := json.Marshal(snap.Records)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO shift_snapshot (date_from, date_to, count, records, taken_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.DateFrom, snap.DateTo, len(snap.Records), string(records), snap.TakenAt.Unix(),
	)
	return err
}

// Latest returns the most recent snapshot taken for the exact date
// range, ok == false when none was ever recorded.
func (s *Store) Latest(ctx context.Context, dateFrom, dateTo string) (Snapshot, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT records, taken_at FROM shift_snapshot
		 WHERE date_from = ? AND date_to = ?
		 ORDER BY taken_at DESC LIMIT 1`,
		dateFrom, dateTo,
	)

	var records string
	var takenAt int64
	err := row.Scan(&records, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	snap := Snapshot{
		TakenAt:  time.Unix(takenAt, 0),
		DateFrom: dateFrom,
		DateTo:   dateTo,
	}
	err = json.Unmarshal([]byte(records), &snap.Records)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}
