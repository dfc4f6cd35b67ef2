package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	s := &PostgresStorage{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		logger.Errorf("failed to init schema: %v", err)
		return nil, err
	}
	return s, nil
}

// initSchema creates tables on startup. The unique indexes on the composite
// keys are what makes upserts atomic under concurrent calculation passes.
func (p *PostgresStorage) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timeline_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_date TIMESTAMPTZ NOT NULL,
		activity_type TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		tags JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_date ON timeline_events(user_id, event_date DESC);
	CREATE INDEX IF NOT EXISTS idx_events_created ON timeline_events(created_at DESC);

	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		current_streak INT NOT NULL,
		last_event_date TIMESTAMPTZ NOT NULL,
		insight_text TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, type, category)
	);

	CREATE TABLE IF NOT EXISTS achievement_progress (
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		current_count INT NOT NULL,
		required_count INT NOT NULL,
		progress_message TEXT NOT NULL DEFAULT '',
		last_updated TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, type, category)
	);

	CREATE TABLE IF NOT EXISTS lifestyle_focuses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		focus_type TEXT NOT NULL,
		status TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		start_date TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_focuses_user ON lifestyle_focuses(user_id);

	CREATE TABLE IF NOT EXISTS lifestyle_achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		focus_id TEXT NOT NULL DEFAULT '',
		achievement_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		insight_text TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL,
		date_triggered TIMESTAMPTZ NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_lifestyle_user_date ON lifestyle_achievements(user_id, date_triggered DESC);

	CREATE TABLE IF NOT EXISTS inferred_patterns (
		user_id TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		detection_count INT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		last_detected TIMESTAMPTZ NOT NULL,
		confirmation_shown BOOLEAN NOT NULL DEFAULT FALSE,
		user_response TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, pattern_type)
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		complexity_level INT NOT NULL
	);
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// --- EventRepository ---

func (p *PostgresStorage) SaveEvent(ctx context.Context, e *internal.TimelineEvent) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO timeline_events (id, user_id, event_type, event_date, activity_type, severity, description, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.EventType, e.EventDate, e.ActivityType, e.Severity, e.Description, tags, e.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert event: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]internal.TimelineEvent, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, user_id, event_type, event_date, activity_type, severity, description, tags, created_at
		FROM timeline_events WHERE user_id = $1 AND event_date >= $2 AND event_date <= $3 ORDER BY event_date DESC`,
		userID, from, to)
	if err != nil {
		p.logger.Errorf("failed to query events: %v", err)
		return nil, err
	}
	defer rows.Close()

	var events []internal.TimelineEvent
	for rows.Next() {
		var (
			e    internal.TimelineEvent
			tags []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.EventDate, &e.ActivityType, &e.Severity, &e.Description, &tags, &e.CreatedAt); err != nil {
			p.logger.Errorf("failed to scan event: %v", err)
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &e.Tags); err != nil {
				p.logger.Errorf("failed to decode event tags: %v", err)
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *PostgresStorage) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT user_id FROM timeline_events WHERE created_at >= $1 ORDER BY user_id`, since)
	if err != nil {
		p.logger.Errorf("failed to query active users: %v", err)
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// --- AchievementRepository ---

func (p *PostgresStorage) UpsertAchievement(ctx context.Context, a *internal.Achievement) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO achievements (id, user_id, type, category, start_date, current_streak, last_event_date, insight_text, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, type, category) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			current_streak = EXCLUDED.current_streak,
			last_event_date = EXCLUDED.last_event_date,
			insight_text = EXCLUDED.insight_text,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.UserID, a.Type, a.Category, a.StartDate, a.CurrentStreak, a.LastEventDate, a.InsightText, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		p.logger.Errorf("failed to upsert achievement: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) GetAchievement(ctx context.Context, key internal.AchievementKey) (*internal.Achievement, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, user_id, type, category, start_date, current_streak, last_event_date, insight_text, status, created_at, updated_at
		FROM achievements WHERE user_id = $1 AND type = $2 AND category = $3`,
		key.UserID, key.Type, key.Category)
	var a internal.Achievement
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Category, &a.StartDate, &a.CurrentStreak, &a.LastEventDate, &a.InsightText, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to get achievement: %v", err)
		return nil, err
	}
	return &a, nil
}

func (p *PostgresStorage) ListAchievements(ctx context.Context, userID string) ([]internal.Achievement, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, user_id, type, category, start_date, current_streak, last_event_date, insight_text, status, created_at, updated_at
		FROM achievements WHERE user_id = $1 ORDER BY last_event_date DESC`, userID)
	if err != nil {
		p.logger.Errorf("failed to query achievements: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []internal.Achievement
	for rows.Next() {
		var a internal.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Category, &a.StartDate, &a.CurrentStreak, &a.LastEventDate, &a.InsightText, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- ProgressRepository ---

func (p *PostgresStorage) UpsertProgress(ctx context.Context, pr *internal.AchievementProgress) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO achievement_progress (user_id, type, category, current_count, required_count, progress_message, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, type, category) DO UPDATE SET
			current_count = EXCLUDED.current_count,
			required_count = EXCLUDED.required_count,
			progress_message = EXCLUDED.progress_message,
			last_updated = EXCLUDED.last_updated`,
		pr.UserID, pr.Type, pr.Category, pr.CurrentCount, pr.RequiredCount, pr.ProgressMessage, pr.LastUpdated)
	if err != nil {
		p.logger.Errorf("failed to upsert progress: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) DeleteProgress(ctx context.Context, key internal.AchievementKey) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM achievement_progress WHERE user_id = $1 AND type = $2 AND category = $3`,
		key.UserID, key.Type, key.Category)
	if err != nil {
		p.logger.Errorf("failed to delete progress: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) ListProgress(ctx context.Context, userID string) ([]internal.AchievementProgress, error) {
	rows, err := p.pool.Query(ctx, `SELECT user_id, type, category, current_count, required_count, progress_message, last_updated
		FROM achievement_progress WHERE user_id = $1 ORDER BY category`, userID)
	if err != nil {
		p.logger.Errorf("failed to query progress: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []internal.AchievementProgress
	for rows.Next() {
		var pr internal.AchievementProgress
		if err := rows.Scan(&pr.UserID, &pr.Type, &pr.Category, &pr.CurrentCount, &pr.RequiredCount, &pr.ProgressMessage, &pr.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// --- FocusRepository ---

func (p *PostgresStorage) SaveFocus(ctx context.Context, f *internal.LifestyleFocus) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO lifestyle_focuses (id, user_id, focus_type, status, confidence, start_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.UserID, f.FocusType, f.Status, f.Confidence, f.StartDate)
	if err != nil {
		p.logger.Errorf("failed to insert focus: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) GetFocus(ctx context.Context, id string) (*internal.LifestyleFocus, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, user_id, focus_type, status, confidence, start_date FROM lifestyle_focuses WHERE id = $1`, id)
	var f internal.LifestyleFocus
	if err := row.Scan(&f.ID, &f.UserID, &f.FocusType, &f.Status, &f.Confidence, &f.StartDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to get focus: %v", err)
		return nil, err
	}
	return &f, nil
}

func (p *PostgresStorage) UpdateFocusStatus(ctx context.Context, id string, status internal.FocusStatus) error {
	tag, err := p.pool.Exec(ctx, `UPDATE lifestyle_focuses SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		p.logger.Errorf("failed to update focus status: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) ListFocuses(ctx context.Context, userID string, statuses ...internal.FocusStatus) ([]internal.LifestyleFocus, error) {
	query := `SELECT id, user_id, focus_type, status, confidence, start_date FROM lifestyle_focuses WHERE user_id = $1`
	args := []any{userID}
	if len(statuses) > 0 {
		ss := make([]string, len(statuses))
		for i, st := range statuses {
			ss[i] = string(st)
		}
		query += ` AND status = ANY($2)`
		args = append(args, ss)
	}
	query += ` ORDER BY start_date DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Errorf("failed to query focuses: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []internal.LifestyleFocus
	for rows.Next() {
		var f internal.LifestyleFocus
		if err := rows.Scan(&f.ID, &f.UserID, &f.FocusType, &f.Status, &f.Confidence, &f.StartDate); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- LifestyleAchievementRepository ---

func (p *PostgresStorage) AppendLifestyleAchievement(ctx context.Context, a *internal.LifestyleAchievement) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO lifestyle_achievements (id, user_id, focus_id, achievement_type, title, insight_text, confidence, date_triggered, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.UserID, a.FocusID, a.AchievementType, a.Title, a.InsightText, a.Confidence, a.DateTriggered, meta)
	if err != nil {
		p.logger.Errorf("failed to insert lifestyle achievement: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) ListLifestyleAchievements(ctx context.Context, userID string, since time.Time) ([]internal.LifestyleAchievement, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, user_id, focus_id, achievement_type, title, insight_text, confidence, date_triggered, metadata
		FROM lifestyle_achievements WHERE user_id = $1 AND date_triggered >= $2 ORDER BY date_triggered DESC`,
		userID, since)
	if err != nil {
		p.logger.Errorf("failed to query lifestyle achievements: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []internal.LifestyleAchievement
	for rows.Next() {
		var (
			a    internal.LifestyleAchievement
			meta []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.FocusID, &a.AchievementType, &a.Title, &a.InsightText, &a.Confidence, &a.DateTriggered, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- PatternRepository ---

func (p *PostgresStorage) UpsertPattern(ctx context.Context, pat *internal.InferredPattern) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO inferred_patterns (user_id, pattern_type, detection_count, confidence, last_detected, confirmation_shown, user_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, pattern_type) DO UPDATE SET
			detection_count = EXCLUDED.detection_count,
			confidence = EXCLUDED.confidence,
			last_detected = EXCLUDED.last_detected,
			confirmation_shown = EXCLUDED.confirmation_shown,
			user_response = EXCLUDED.user_response`,
		pat.UserID, pat.PatternType, pat.DetectionCount, pat.Confidence, pat.LastDetected, pat.ConfirmationShown, string(pat.UserResponse))
	if err != nil {
		p.logger.Errorf("failed to upsert pattern: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) GetPattern(ctx context.Context, userID, patternType string) (*internal.InferredPattern, error) {
	row := p.pool.QueryRow(ctx, `SELECT user_id, pattern_type, detection_count, confidence, last_detected, confirmation_shown, user_response
		FROM inferred_patterns WHERE user_id = $1 AND pattern_type = $2`, userID, patternType)
	var (
		pat      internal.InferredPattern
		response string
	)
	if err := row.Scan(&pat.UserID, &pat.PatternType, &pat.DetectionCount, &pat.Confidence, &pat.LastDetected, &pat.ConfirmationShown, &response); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("failed to get pattern: %v", err)
		return nil, err
	}
	pat.UserResponse = internal.PatternResponse(response)
	return &pat, nil
}

func (p *PostgresStorage) ListPatterns(ctx context.Context, userID string) ([]internal.InferredPattern, error) {
	rows, err := p.pool.Query(ctx, `SELECT user_id, pattern_type, detection_count, confidence, last_detected, confirmation_shown, user_response
		FROM inferred_patterns WHERE user_id = $1 ORDER BY pattern_type`, userID)
	if err != nil {
		p.logger.Errorf("failed to query patterns: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []internal.InferredPattern
	for rows.Next() {
		var (
			pat      internal.InferredPattern
			response string
		)
		if err := rows.Scan(&pat.UserID, &pat.PatternType, &pat.DetectionCount, &pat.Confidence, &pat.LastDetected, &pat.ConfirmationShown, &response); err != nil {
			return nil, err
		}
		pat.UserResponse = internal.PatternResponse(response)
		out = append(out, pat)
	}
	return out, rows.Err()
}

// --- SettingsRepository ---

func (p *PostgresStorage) GetSettings(ctx context.Context, userID string) (*internal.UserSettings, error) {
	row := p.pool.QueryRow(ctx, `SELECT user_id, complexity_level FROM user_settings WHERE user_id = $1`, userID)
	var s internal.UserSettings
	if err := row.Scan(&s.UserID, &s.ComplexityLevel); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &internal.UserSettings{UserID: userID, ComplexityLevel: internal.DefaultComplexityLevel}, nil
		}
		p.logger.Errorf("failed to get settings: %v", err)
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStorage) PutSettings(ctx context.Context, s *internal.UserSettings) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO user_settings (user_id, complexity_level) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET complexity_level = EXCLUDED.complexity_level`,
		s.UserID, s.ComplexityLevel)
	if err != nil {
		p.logger.Errorf("failed to put settings: %v", err)
		return err
	}
	return nil
}

// --- UserRepository ---

func (p *PostgresStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, token, name FROM users WHERE token = $1`, token)
	var u internal.User
	if err := row.Scan(&u.ID, &u.Token, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("user not found: %v", err)
		return nil, err
	}
	return &u, nil
}

// --- Compile-time assertions ---
var _ EventRepository = (*PostgresStorage)(nil)
var _ AchievementRepository = (*PostgresStorage)(nil)
var _ ProgressRepository = (*PostgresStorage)(nil)
var _ FocusRepository = (*PostgresStorage)(nil)
var _ LifestyleAchievementRepository = (*PostgresStorage)(nil)
var _ PatternRepository = (*PostgresStorage)(nil)
var _ SettingsRepository = (*PostgresStorage)(nil)
var _ UserRepository = (*PostgresStorage)(nil)
