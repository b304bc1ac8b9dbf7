package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "postbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const scheduleCols = `id, name, type, cron_expression, timezone, is_active, next_run_at, created_at, updated_at`

func (s *sqliteStore) Create(ctx context.Context, sc *Schedule) error {
	now := time.Now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(`+scheduleCols+`) VALUES(?,?,?,?,?,?,?,?,?)`,
		sc.ID, sc.Name, sc.Type, sc.CronExpression, sc.Timezone,
		boolInt(sc.IsActive), nullMillis(sc.NextRunAt),
		sc.CreatedAt.UnixMilli(), sc.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (*Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sc, err
}

func (s *sqliteStore) FindDue(ctx context.Context, now time.Time) ([]*Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE is_active = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		 ORDER BY next_run_at ASC`,
		now.UnixMilli())
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

func (s *sqliteStore) FindUninitialized(ctx context.Context) ([]*Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE is_active = 1 AND next_run_at IS NULL`)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

func (s *sqliteStore) UpdateNextRunAt(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		ts.UnixMilli(), time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) UpdateSpec(ctx context.Context, id, cronExpression, timezone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET cron_expression = ?, timezone = ?, updated_at = ? WHERE id = ?`,
		cronExpression, timezone, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) List(ctx context.Context) ([]*Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r rowScanner) (*Schedule, error) {
	var (
		sc       Schedule
		active   int
		next     sql.NullInt64
		created  int64
		updated  int64
	)
	err := r.Scan(&sc.ID, &sc.Name, &sc.Type, &sc.CronExpression, &sc.Timezone,
		&active, &next, &created, &updated)
	if err != nil {
		return nil, err
	}
	sc.IsActive = active != 0
	if next.Valid {
		t := time.UnixMilli(next.Int64)
		sc.NextRunAt = &t
	}
	sc.CreatedAt = time.UnixMilli(created)
	sc.UpdatedAt = time.UnixMilli(updated)
	return &sc, nil
}

func collectSchedules(rows *sql.Rows) ([]*Schedule, error) {
	defer rows.Close()
	var out []*Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
