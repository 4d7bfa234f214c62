// Package history persists users, executed queries and alert subscriptions
// in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/civica-cloud/secoql/internal/domain"
)

// User is a known WhatsApp or web user.
type User struct {
	ID        string
	Phone     string
	Name      string
	CreatedAt time.Time
}

// QueryLog is one executed search.
type QueryLog struct {
	ID        string
	UserID    string
	Channel   string
	QueryText string
	Params    map[string]any
	CreatedAt time.Time
}

// Alert is a stored alert subscription. Delivery is out of scope; the
// store only keeps the subscriptions.
type Alert struct {
	ID        string
	UserID    string
	Schedule  string
	Params    map[string]any
	CreatedAt time.Time
}

// Store wraps the SQLite handle.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			phone TEXT UNIQUE NOT NULL,
			name TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS query_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			channel TEXT NOT NULL,
			query_text TEXT NOT NULL,
			parsed_params TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			schedule TEXT NOT NULL,
			query_params TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureUser returns the user with phone, creating it when absent.
func (s *Store) EnsureUser(ctx context.Context, phone, name string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, phone, COALESCE(name, ''), created_at FROM users WHERE phone = ?`, phone).
		Scan(&u.ID, &u.Phone, &u.Name, &u.CreatedAt)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	u = User{ID: uuid.NewString(), Phone: phone, Name: name, CreatedAt: time.Now().UTC()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, phone, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Phone, u.Name, u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// LogQuery records an executed search. A non-empty phone attributes the
// log to that user, creating the user row on first contact; an empty phone
// records an anonymous entry.
func (s *Store) LogQuery(ctx context.Context, phone, channel, text string, params domain.QueryParams) error {
	if phone == "" {
		return s.logQuery(ctx, "", channel, text, params)
	}
	u, err := s.EnsureUser(ctx, phone, "")
	if err != nil {
		return err
	}
	return s.LogUserQuery(ctx, u.ID, channel, text, params)
}

// LogUserQuery records an executed search for userID.
func (s *Store) LogUserQuery(
	ctx context.Context, userID, channel, text string, params domain.QueryParams,
) error {
	return s.logQuery(ctx, userID, channel, text, params)
}

func (s *Store) logQuery(
	ctx context.Context, userID, channel, text string, params domain.QueryParams,
) error {
	parsed, err := json.Marshal(params.AsMap())
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	var uid any
	if userID != "" {
		uid = userID
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_logs (id, user_id, channel, query_text, parsed_params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), uid, channel, text, string(parsed), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// RecentQueries returns the latest limit query logs, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id, ''), channel, query_text, COALESCE(parsed_params, ''), created_at
		 FROM query_logs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select query logs: %w", err)
	}
	defer rows.Close()

	var logs []QueryLog
	for rows.Next() {
		var q QueryLog
		var parsed string
		if err := rows.Scan(&q.ID, &q.UserID, &q.Channel, &q.QueryText, &parsed, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		q.Params = unmarshalParams(s.logger, q.ID, parsed)
		logs = append(logs, q)
	}
	return logs, rows.Err()
}

// CreateAlert stores an alert subscription for userID.
func (s *Store) CreateAlert(
	ctx context.Context, userID, schedule string, params domain.QueryParams,
) (Alert, error) {
	encoded, err := json.Marshal(params.AsMap())
	if err != nil {
		return Alert{}, fmt.Errorf("marshal params: %w", err)
	}

	a := Alert{
		ID:        uuid.NewString(),
		UserID:    userID,
		Schedule:  schedule,
		Params:    params.AsMap(),
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, user_id, schedule, query_params, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Schedule, string(encoded), a.CreatedAt)
	if err != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return a, nil
}

// AlertsForUser returns userID's alert subscriptions, newest first.
func (s *Store) AlertsForUser(ctx context.Context, userID string) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, schedule, query_params, created_at
		 FROM alerts WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var encoded string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Schedule, &encoded, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Params = unmarshalParams(s.logger, a.ID, encoded)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func unmarshalParams(logger *zap.Logger, id, encoded string) map[string]any {
	if encoded == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(encoded), &params); err != nil {
		logger.Warn("Malformed stored params", zap.String("id", id), zap.Error(err))
		return nil
	}
	return params
}
