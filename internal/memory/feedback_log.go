package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stilya/stilya/internal/models"
)

// SQLiteFeedbackLog implements FeedbackLog on SQLite
type SQLiteFeedbackLog struct {
	db *sql.DB
}

// NewSQLiteFeedbackLog opens the feedback database at dbPath. An empty path
// uses a private in-memory database.
func NewSQLiteFeedbackLog(dbPath string) (*SQLiteFeedbackLog, error) {
	dsn := ":memory:"
	if dbPath != "" {
		dbPath = expandPath(dbPath)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	l := &SQLiteFeedbackLog{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return l, nil
}

func (l *SQLiteFeedbackLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feedback_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		recommendation_id TEXT,
		rating INTEGER NOT NULL,
		feedback_type TEXT NOT NULL,
		comments TEXT,
		created_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_ns);
	CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Append stores feedback and returns its row id
func (l *SQLiteFeedbackLog) Append(ctx context.Context, feedback *models.UserFeedback) (int64, error) {
	ts := feedback.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO feedback (
			feedback_id, user_id, recommendation_id, rating, feedback_type, comments, created_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		feedback.FeedbackID,
		feedback.UserID,
		feedback.RecommendationID,
		feedback.Rating,
		string(feedback.FeedbackType),
		feedback.Comments,
		ts.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return res.LastInsertId()
}

// Since returns feedback newer than since, oldest first
func (l *SQLiteFeedbackLog) Since(ctx context.Context, since time.Time, userID string) ([]*models.UserFeedback, error) {
	query := "SELECT feedback_id, user_id, recommendation_id, rating, feedback_type, comments, created_ns FROM feedback WHERE created_ns >= ?"
	args := []interface{}{sinceNanos(since)}

	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY id ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserFeedback
	for rows.Next() {
		var (
			fb        models.UserFeedback
			recID     sql.NullString
			comments  sql.NullString
			fbType    string
			createdNs int64
		)
		if err := rows.Scan(&fb.FeedbackID, &fb.UserID, &recID, &fb.Rating, &fbType, &comments, &createdNs); err != nil {
			return nil, err
		}
		fb.RecommendationID = recID.String
		fb.Comments = comments.String
		fb.FeedbackType = models.FeedbackType(fbType)
		fb.Timestamp = time.Unix(0, createdNs)
		out = append(out, &fb)
	}

	return out, rows.Err()
}

// Stats aggregates ratings newer than since
func (l *SQLiteFeedbackLog) Stats(ctx context.Context, since time.Time) (*FeedbackStats, error) {
	var (
		stats FeedbackStats
		avg   sql.NullFloat64
		low   sql.NullInt64
	)

	err := l.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			AVG(rating),
			SUM(CASE WHEN rating <= 2 THEN 1 ELSE 0 END)
		FROM feedback
		WHERE created_ns >= ?`, sinceNanos(since)).Scan(&stats.Total, &avg, &low)
	if err != nil {
		return nil, err
	}

	stats.AverageRating = avg.Float64
	stats.LowRatings = low.Int64
	return &stats, nil
}

// sinceNanos maps the zero time to the start of the log
func sinceNanos(t time.Time) int64 {
	if t.IsZero() {
		return math.MinInt64
	}
	return t.UnixNano()
}

// Prune deletes feedback older than before
func (l *SQLiteFeedbackLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM feedback WHERE created_ns < ?", before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (l *SQLiteFeedbackLog) Close() error {
	return l.db.Close()
}
