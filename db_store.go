package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type DBDialect string

const (
	dialectSQLite   DBDialect = "sqlite"
	dialectPostgres DBDialect = "postgres"
)

type SQLRepository struct {
	dialect DBDialect
	db      *sql.DB
}

func newConfiguredStore() (*Store, error) {
	store := newStore()
	repo, err := openRepositoryFromEnv()
	if err != nil {
		return nil, err
	}
	store.repo = repo
	return store, nil
}

func openRepositoryFromEnv() (*SQLRepository, error) {
	dialectRaw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if dialectRaw == "" {
		dialectRaw = string(dialectSQLite)
	}
	dialect := DBDialect(dialectRaw)

	var driverName string
	var dsn string
	switch dialect {
	case "none":
		// Memory-only mode: gameplay works, saves and leaderboard are off.
		return nil, nil
	case dialectSQLite:
		driverName = "sqlite"
		path := strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if path == "" {
			path = filepath.Join("tmp", "mayor_quiz.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = path
	case dialectPostgres:
		driverName = "pgx"
		dsn = strings.TrimSpace(os.Getenv("DB_POSTGRES_DSN"))
		if dsn == "" {
			dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialectRaw)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	repo := &SQLRepository{dialect: dialect, db: db}
	if err := repo.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("database: dialect=%s", dialect)
	return repo, nil
}

func (r *SQLRepository) bind(pos int) string {
	if r.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (r *SQLRepository) insertQuery(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = r.bind(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.Join(ph, ", "),
	)
}

func (r *SQLRepository) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	pattern := fmt.Sprintf("migrations/%s/*.sql", r.dialect)
	files, err := fs.Glob(migrationFS, pattern)
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		sqlBytes, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := r.insertQuery("schema_migrations", []string{"version", "applied_at"})
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func asJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// CreateSession inserts the per-session row that leaderboard and analytics
// queries aggregate over. The save snapshot lives in game_saves.
func (r *SQLRepository) CreateSession(ctx context.Context, s *Session) error {
	q := r.insertQuery("game_sessions", []string{
		"session_id", "player_name", "difficulty",
		"final_score", "happiness", "city_funds", "special_interest", "personal_profit",
		"decisions_made", "play_time_seconds", "created_at", "completed_at",
	})
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.PlayerName, s.Difficulty,
		0, s.Happiness, s.CityFunds, s.SpecialInterest, s.PersonalProfit,
		0, 0, s.CreatedAt, nil,
	)
	if err != nil {
		return fmt.Errorf("insert game_sessions: %w", err)
	}
	return nil
}

// SaveGame upserts the full session snapshot keyed by session id.
func (r *SQLRepository) SaveGame(ctx context.Context, s *Session) error {
	q := fmt.Sprintf(`
		INSERT INTO game_saves (session_id, game_state, score, current_scene, saved_at)
		VALUES (%s, %s, %s, %s, %s)
		ON CONFLICT (session_id) DO UPDATE SET
			game_state = excluded.game_state,
			score = excluded.score,
			current_scene = excluded.current_scene,
			saved_at = excluded.saved_at
	`, r.bind(1), r.bind(2), r.bind(3), r.bind(4), r.bind(5))
	_, err := r.db.ExecContext(ctx, q, s.ID, asJSON(s), int(s.FinalScore), s.CurrentScene, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert game_saves: %w", err)
	}
	return nil
}

// LoadGame decodes the latest snapshot for a session back into a Session.
func (r *SQLRepository) LoadGame(ctx context.Context, sessionID string) (*Session, error) {
	q := fmt.Sprintf("SELECT game_state FROM game_saves WHERE session_id = %s", r.bind(1))
	var payload string
	if err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load game_saves: no save for session %s", sessionID)
		}
		return nil, fmt.Errorf("load game_saves: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("decode save for session %s: %w", sessionID, err)
	}
	return &s, nil
}

// CompleteSession records final results on a session row exactly once.
// Returns false when the row is missing or already completed.
func (r *SQLRepository) CompleteSession(ctx context.Context, s *Session) (bool, error) {
	playTime := 0
	if !s.CompletedAt.IsZero() {
		playTime = int(s.CompletedAt.Sub(s.StartedAt).Seconds())
	}
	q := fmt.Sprintf(`
		UPDATE game_sessions SET
			final_score = %s,
			happiness = %s,
			city_funds = %s,
			special_interest = %s,
			personal_profit = %s,
			decisions_made = %s,
			play_time_seconds = %s,
			completed_at = %s
		WHERE session_id = %s AND completed_at IS NULL
	`, r.bind(1), r.bind(2), r.bind(3), r.bind(4), r.bind(5), r.bind(6), r.bind(7), r.bind(8), r.bind(9))
	res, err := r.db.ExecContext(ctx, q,
		int(s.FinalScore), s.Happiness, s.CityFunds, s.SpecialInterest, s.PersonalProfit,
		len(s.Decisions), playTime, nullableTime(s.CompletedAt), s.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update game_sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	PlayerName      string `json:"playerName"`
	Difficulty      string `json:"difficulty"`
	FinalScore      int    `json:"finalScore"`
	Happiness       int    `json:"happiness"`
	CityFunds       int    `json:"cityFunds"`
	SpecialInterest int    `json:"specialInterest"`
	PlayTimeSeconds int    `json:"playTimeSeconds"`
	CompletedAt     string `json:"completedAt"`
}

func (r *SQLRepository) Leaderboard(ctx context.Context, difficulty string, limit int) ([]LeaderboardEntry, error) {
	q := `
		SELECT player_name, difficulty, final_score, happiness, city_funds, special_interest, play_time_seconds, completed_at
		FROM game_sessions
		WHERE completed_at IS NOT NULL
	`
	var args []any
	if difficulty != "" {
		q += fmt.Sprintf(" AND difficulty = %s", r.bind(1))
		args = append(args, difficulty)
	}
	q += fmt.Sprintf(" ORDER BY final_score DESC, play_time_seconds ASC LIMIT %s", r.bind(len(args)+1))
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		var completed time.Time
		if err := rows.Scan(&e.PlayerName, &e.Difficulty, &e.FinalScore, &e.Happiness, &e.CityFunds, &e.SpecialInterest, &e.PlayTimeSeconds, &completed); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		e.CompletedAt = completed.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

type SessionStatsRow struct {
	SessionID       string `json:"sessionId"`
	PlayerName      string `json:"playerName"`
	Difficulty      string `json:"difficulty"`
	FinalScore      int    `json:"finalScore"`
	Happiness       int    `json:"happiness"`
	CityFunds       int    `json:"cityFunds"`
	SpecialInterest int    `json:"specialInterest"`
	PersonalProfit  int    `json:"personalProfit"`
	DecisionsMade   int    `json:"decisionsMade"`
	PlayTimeSeconds int    `json:"playTimeSeconds"`
	Completed       bool   `json:"completed"`
}

func (r *SQLRepository) SessionStats(ctx context.Context, sessionID string) (*SessionStatsRow, error) {
	q := fmt.Sprintf(`
		SELECT session_id, player_name, difficulty, final_score, happiness, city_funds,
			special_interest, personal_profit, decisions_made, play_time_seconds, completed_at
		FROM game_sessions WHERE session_id = %s
	`, r.bind(1))
	var row SessionStatsRow
	var completed sql.NullTime
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&row.SessionID, &row.PlayerName, &row.Difficulty, &row.FinalScore,
		&row.Happiness, &row.CityFunds, &row.SpecialInterest, &row.PersonalProfit,
		&row.DecisionsMade, &row.PlayTimeSeconds, &completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("query session stats: %w", err)
	}
	row.Completed = completed.Valid
	return &row, nil
}

type AnalyticsRow struct {
	Difficulty      string  `json:"difficulty"`
	GamesPlayed     int     `json:"gamesPlayed"`
	GamesCompleted  int     `json:"gamesCompleted"`
	AvgFinalScore   float64 `json:"avgFinalScore"`
	BestFinalScore  int     `json:"bestFinalScore"`
	AvgPlayTimeSecs float64 `json:"avgPlayTimeSeconds"`
}

func (r *SQLRepository) AnalyticsSummary(ctx context.Context) ([]AnalyticsRow, error) {
	q := `
		SELECT difficulty,
			COUNT(1),
			COUNT(completed_at),
			COALESCE(AVG(CASE WHEN completed_at IS NOT NULL THEN final_score END), 0),
			COALESCE(MAX(CASE WHEN completed_at IS NOT NULL THEN final_score END), 0),
			COALESCE(AVG(CASE WHEN completed_at IS NOT NULL THEN play_time_seconds END), 0)
		FROM game_sessions
		GROUP BY difficulty
		ORDER BY difficulty
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	out := []AnalyticsRow{}
	for rows.Next() {
		var row AnalyticsRow
		if err := rows.Scan(&row.Difficulty, &row.GamesPlayed, &row.GamesCompleted, &row.AvgFinalScore, &row.BestFinalScore, &row.AvgPlayTimeSecs); err != nil {
			return nil, fmt.Errorf("scan analytics row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics: %w", err)
	}
	return out, nil
}
