package admin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Zachkp/portfolio/internal/contact"
)

// Timestamps are stored as fixed-width UTC text so range filters can
// compare them as strings.
const tsLayout = "2006-01-02 15:04:05"

// VisitorMetric is one tracked page view. The raw IP is never stored.
type VisitorMetric struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// ContactStats counts contact requests by outcome. Message content is never
// recorded.
type ContactStats struct {
	Sent     int64 `json:"sent"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

type Stats struct {
	TotalVisitors    int64           `json:"total_visitors"`
	UniqueVisitors   int64           `json:"unique_visitors"`
	VisitorsToday    int64           `json:"visitors_today"`
	VisitorsThisWeek int64           `json:"visitors_this_week"`
	Contact          ContactStats    `json:"contact"`
	RecentVisitors   []VisitorMetric `json:"recent_visitors"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the sqlite database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// sqlite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger.Named("store"), now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hashed_ip TEXT NOT NULL,
			user_agent TEXT,
			path TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_timestamp ON visitors (timestamp)`,
		`CREATE TABLE IF NOT EXISTS contact_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome TEXT NOT NULL,
			dispatch_ms INTEGER NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) stamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func (s *Store) RecordVisit(ctx context.Context, hashedIP, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?)
	`, hashedIP, userAgent, path, s.stamp(s.now()))
	return err
}

// RecordOutcome stores the outcome of one contact request. Failures are
// logged and otherwise ignored so the visitor's response is unaffected.
func (s *Store) RecordOutcome(ctx context.Context, outcome contact.Outcome, dispatch time.Duration) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_events (outcome, dispatch_ms, timestamp)
		VALUES (?, ?, ?)
	`, string(outcome), dispatch.Milliseconds(), s.stamp(s.now()))
	if err != nil {
		s.logger.Error("Error recording contact outcome", zap.String("outcome", string(outcome)), zap.Error(err))
	}
}

// Stats gathers the dashboard numbers, including the 50 most recent visits.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{s.stamp(startOfDay)}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{s.stamp(now.AddDate(0, 0, -7))}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	var err error
	if stats.Contact, err = s.contactStats(ctx); err != nil {
		return nil, err
	}
	stats.RecentVisitors, err = s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) contactStats(ctx context.Context) (ContactStats, error) {
	var cs ContactStats
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM contact_events GROUP BY outcome`)
	if err != nil {
		return cs, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return cs, err
		}
		switch contact.Outcome(outcome) {
		case contact.OutcomeSent:
			cs.Sent = n
		case contact.OutcomeRejected:
			cs.Rejected = n
		case contact.OutcomeFailed:
			cs.Failed = n
		}
	}
	return cs, rows.Err()
}

// RecentVisitors returns up to limit visits, newest first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]VisitorMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, user_agent, path, timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visitors := []VisitorMetric{}
	for rows.Next() {
		var (
			v  VisitorMetric
			ts string
		)
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			continue
		}
		v.Timestamp, _ = time.Parse(tsLayout, ts)
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

// CleanupOldVisitors deletes visits older than maxAge and reports how many
// rows went.
func (s *Store) CleanupOldVisitors(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE timestamp < ?`, s.stamp(s.now().Add(-maxAge)))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
