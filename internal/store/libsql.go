package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/behaviors/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. the trigger log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Evaluations ---

// RecordEvaluation appends an evaluation and its triggers. The sequence is
// assigned per conversation, starting at 1.
func (s *LibSQLStore) RecordEvaluation(ctx context.Context, ev *Evaluation) error {
	if ev.ID == "" || ev.ConversationID == "" || ev.SetID == "" {
		return schema.NewError(schema.ErrCodeValidation, "evaluation requires id, conversation_id and set_id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM evaluations WHERE conversation_id = ?`, ev.ConversationID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}

	ts := timeOrNow(ev.CreatedAt)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluations (id, set_id, set_version, conversation_id, step_id, sequence, triggered_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SetID, nullStr(ev.SetVersion), ev.ConversationID, nullStr(ev.StepID), seq, len(ev.Triggers), ts,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}

	for i, tr := range ev.Triggers {
		actions, err := nullableList(tr.Actions)
		if err != nil {
			return fmt.Errorf("marshal actions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO triggers (evaluation_id, position, behavior_id, actions) VALUES (?, ?, ?, ?)`,
			ev.ID, i, tr.BehaviorID, actions,
		); err != nil {
			return fmt.Errorf("insert trigger %s: %w", tr.BehaviorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation: %w", err)
	}
	ev.Sequence = seq
	ev.CreatedAt = ts
	return nil
}

func (s *LibSQLStore) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, evaluationColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	evs, err := scanEvaluations(rows)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, storeNotFound("evaluation", id)
	}
	if err := s.loadTriggers(ctx, evs); err != nil {
		return nil, err
	}
	return evs[0], nil
}

// ListEvaluations returns evaluations matching the filter. Within a
// conversation they are ordered by sequence; otherwise newest first.
func (s *LibSQLStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error) {
	where, args := filter.where()

	query := evaluationColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.ConversationID != "" {
		query += " ORDER BY sequence ASC"
	} else {
		query += " ORDER BY created_at DESC, id ASC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	evs, err := scanEvaluations(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadTriggers(ctx, evs); err != nil {
		return nil, err
	}
	return evs, nil
}

// CountTriggers returns how many times each behavior fired across the
// evaluations matching the filter. Limit and Offset are ignored.
func (s *LibSQLStore) CountTriggers(ctx context.Context, filter EvaluationFilter) (map[string]int, error) {
	where, args := filter.where()
	query := `SELECT t.behavior_id, COUNT(*) FROM triggers t JOIN evaluations e ON e.id = t.evaluation_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY t.behavior_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

const evaluationColumns = `SELECT id, set_id, set_version, conversation_id, step_id, sequence, created_at FROM evaluations e`

func (f EvaluationFilter) where() ([]string, []any) {
	var where []string
	var args []any
	if f.ConversationID != "" {
		where = append(where, "e.conversation_id = ?")
		args = append(args, f.ConversationID)
	}
	if f.BehaviorID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM triggers x WHERE x.evaluation_id = e.id AND x.behavior_id = ?)")
		args = append(args, f.BehaviorID)
	}
	if f.Since != nil {
		where = append(where, "e.created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	return where, args
}

// scanEvaluations drains and closes rows. Triggers are loaded separately
// because the pool holds a single connection.
func scanEvaluations(rows *sql.Rows) ([]*Evaluation, error) {
	defer rows.Close()
	var evs []*Evaluation
	for rows.Next() {
		ev := &Evaluation{}
		var version, stepID sql.NullString
		if err := rows.Scan(&ev.ID, &ev.SetID, &version, &ev.ConversationID, &stepID, &ev.Sequence, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.SetVersion = version.String
		ev.StepID = stepID.String
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

func (s *LibSQLStore) loadTriggers(ctx context.Context, evs []*Evaluation) error {
	for _, ev := range evs {
		rows, err := s.db.QueryContext(ctx,
			`SELECT behavior_id, actions FROM triggers WHERE evaluation_id = ? ORDER BY position ASC`, ev.ID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var tr Trigger
			var actions sql.NullString
			if err := rows.Scan(&tr.BehaviorID, &actions); err != nil {
				rows.Close()
				return err
			}
			if actions.Valid && actions.String != "" {
				if err := json.Unmarshal([]byte(actions.String), &tr.Actions); err != nil {
					rows.Close()
					return fmt.Errorf("unmarshal actions of %s: %w", ev.ID, err)
				}
			}
			ev.Triggers = append(ev.Triggers, tr)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.BehaviorError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableList(items []string) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

var _ Store = (*LibSQLStore)(nil)
