package eventbus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresDeadLetters persists exhausted envelopes so they survive restarts.
// Rows are append-only; replay tooling deletes them out of band.
type PostgresDeadLetters struct {
	db *sql.DB
}

func NewPostgresDeadLetters(db *sql.DB) *PostgresDeadLetters {
	return &PostgresDeadLetters{db: db}
}

func (s *PostgresDeadLetters) Append(ctx context.Context, letter DeadLetter) error {
	envelope, err := json.Marshal(letter.Envelope)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO event_dead_letters (envelope_id, member_id, event_name, envelope, attempts, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		letter.Envelope.ID.String(), letter.Envelope.MemberID.String(), letter.Envelope.Name,
		envelope, letter.Attempts, letter.LastError, letter.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

func (s *PostgresDeadLetters) List(ctx context.Context) ([]DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT envelope, attempts, last_error, failed_at
		FROM event_dead_letters
		ORDER BY failed_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var (
			letter DeadLetter
			raw    []byte
		)
		if err := rows.Scan(&raw, &letter.Attempts, &letter.LastError, &letter.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(raw, &letter.Envelope); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter envelope: %w", err)
		}
		letters = append(letters, letter)
	}
	return letters, rows.Err()
}
