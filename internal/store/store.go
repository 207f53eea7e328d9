// Package store provides SQLite persistence for analysis history.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/rabbitbrain/internal/analysis"
)

// Record kinds.
const (
	KindAnalysis  = "analysis"
	KindDiscovery = "discovery"
	KindShare     = "share"
)

// DefaultListLimit applies when ListRecords is called with limit <= 0.
const DefaultListLimit = 50

// ErrNotFound is returned by GetRecord for unknown ids.
var ErrNotFound = errors.New("record not found")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex // Protects all database operations
	now func() time.Time
}

// Record is one saved pipeline result. Payload holds the full result JSON.
type Record struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	Kind         string          `json:"kind"`
	SourceURL    string          `json:"sourceUrl,omitempty"`
	PostID       string          `json:"postId,omitempty"`
	AuthorHandle string          `json:"authorHandle,omitempty"`
	Topic        string          `json:"topic"`
	Summary      string          `json:"summary,omitempty"`
	Confidence   float64         `json:"confidence,omitempty"`
	Model        string          `json:"model,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		source_url TEXT,
		post_id TEXT,
		author_handle TEXT,
		topic TEXT NOT NULL,
		summary TEXT,
		confidence REAL DEFAULT 0,
		model TEXT,
		created_at INTEGER NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_user_created ON records(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_records_post ON records(post_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveAnalysis stores an analysis for userID and returns the new record.
func (s *Store) SaveAnalysis(userID string, res *analysis.AnalyzeResult) (*Record, error) {
	if res == nil {
		return nil, errors.New("nil analysis")
	}
	return s.insert(Record{
		UserID:       userID,
		Kind:         KindAnalysis,
		SourceURL:    res.SourceURL,
		PostID:       res.PrimaryPost.ID,
		AuthorHandle: res.PrimaryPost.Handle,
		Topic:        res.Analysis.Topic,
		Summary:      res.Analysis.Summary,
		Confidence:   res.Analysis.Confidence,
		Model:        res.Analysis.ModelLabel,
		CreatedAt:    fromMillis(res.AnalyzedAt),
	}, res)
}

// SaveDiscovery stores a topic discovery for userID.
func (s *Store) SaveDiscovery(userID string, res *analysis.DiscoveryResult) (*Record, error) {
	if res == nil {
		return nil, errors.New("nil discovery")
	}
	return s.insert(Record{
		UserID:    userID,
		Kind:      KindDiscovery,
		Topic:     res.Topic,
		CreatedAt: fromMillis(res.DiscoveredAt),
	}, res)
}

// SaveShare stores a shared post for userID.
func (s *Store) SaveShare(userID string, res *analysis.ShareResult) (*Record, error) {
	if res == nil {
		return nil, errors.New("nil share")
	}
	return s.insert(Record{
		UserID:       userID,
		Kind:         KindShare,
		SourceURL:    res.SourceURL,
		PostID:       res.PrimaryPost.ID,
		AuthorHandle: res.PrimaryPost.Handle,
		Topic:        res.Topic,
		CreatedAt:    fromMillis(res.SharedAt),
	}, res)
}

// insert assigns an id, marshals payload and writes the row.
// Thread-safe: acquires write lock.
func (s *Store) insert(rec Record, payload any) (*Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", rec.Kind, err)
	}
	rec.ID = uuid.NewString()
	rec.Payload = data
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO records (id, user_id, kind, source_url, post_id, author_handle, topic, summary, confidence, model, created_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.Kind, rec.SourceURL, rec.PostID, rec.AuthorHandle,
		rec.Topic, rec.Summary, rec.Confidence, rec.Model, rec.CreatedAt.UnixMilli(), string(data))
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", rec.Kind, err)
	}
	return &rec, nil
}

// ListRecords returns userID's records newest first, without payloads.
// Thread-safe: acquires read lock.
func (s *Store) ListRecords(userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, user_id, kind, source_url, post_id, author_handle, topic, summary, confidence, model, created_at, ''
		FROM records
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord returns a record including its payload.
// Thread-safe: acquires read lock.
func (s *Store) GetRecord(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, user_id, kind, source_url, post_id, author_handle, topic, summary, confidence, model, created_at, payload_json
		FROM records WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountRecords returns how many records userID has.
func (s *Store) CountRecords(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var sourceURL, postID, author, sum, mdl sql.NullString
	var created int64
	var payload string
	err := sc.Scan(&rec.ID, &rec.UserID, &rec.Kind, &sourceURL, &postID, &author,
		&rec.Topic, &sum, &rec.Confidence, &mdl, &created, &payload)
	if err != nil {
		return Record{}, err
	}
	rec.SourceURL = sourceURL.String
	rec.PostID = postID.String
	rec.AuthorHandle = author.String
	rec.Summary = sum.String
	rec.Model = mdl.String
	rec.CreatedAt = time.UnixMilli(created)
	if payload != "" {
		rec.Payload = json.RawMessage(payload)
	}
	return rec, nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
