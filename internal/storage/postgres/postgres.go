package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Zlazh-dev/presensiapp3-sub002/internal/models"
	"github.com/Zlazh-dev/presensiapp3-sub002/pkg/response"

	_ "github.com/lib/pq"
)

// Storage persists the local checkout audit trail. Every checkout submission
// is recorded with its outcome, whether or not the server accepted it.
type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) RecordCheckoutAttempt(ctx context.Context, a *models.CheckoutAttempt) error {
	const op = "storage.postgres.RecordCheckoutAttempt"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkout_attempts (id, session_id, reason, outcome, elapsed_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SessionID, a.Reason, string(a.Outcome), a.ElapsedPercent, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ListCheckoutAttempts(ctx context.Context, sessionID *string, from, to *time.Time) ([]*models.CheckoutAttempt, error) {
	const op = "storage.postgres.ListCheckoutAttempts"

	query := `SELECT id, session_id, reason, outcome, elapsed_percent, created_at FROM checkout_attempts WHERE 1=1`
	args := []any{}
	idx := 1

	if sessionID != nil {
		query += fmt.Sprintf(" AND session_id = $%d", idx)
		args = append(args, *sessionID)
		idx++
	}
	if from != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *from)
		idx++
	}
	if to != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *to)
		idx++
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var attempts []*models.CheckoutAttempt
	for rows.Next() {
		var a models.CheckoutAttempt
		var outcome string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Reason, &outcome, &a.ElapsedPercent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.Outcome = models.CheckoutAttemptOutcome(outcome)
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return attempts, nil
}

func (s *Storage) GetCheckoutAttempt(ctx context.Context, id string) (*models.CheckoutAttempt, error) {
	const op = "storage.postgres.GetCheckoutAttempt"

	var a models.CheckoutAttempt
	var outcome string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, reason, outcome, elapsed_percent, created_at
		FROM checkout_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.SessionID, &a.Reason, &outcome, &a.ElapsedPercent, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Outcome = models.CheckoutAttemptOutcome(outcome)

	return &a, nil
}
