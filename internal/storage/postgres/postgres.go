// Package postgres is the sqlx-backed sink implementation. Schema
// lives in migrations/.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stemly/regbot/core/logger"
	"github.com/stemly/regbot/internal/domain"
	"log/slog"
)

const writeTimeout = 5 * time.Second

// Sink persists registrations into postgres.
type Sink struct {
	db *sqlx.DB
}

// NewSink wraps an open connection pool.
func NewSink(db *sqlx.DB) *Sink {
	return &Sink{db: db}
}

const insertParent = `
INSERT INTO parents (telegram_id, first_name, last_name, phone, city, email, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
ON CONFLICT (telegram_id) DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name  = EXCLUDED.last_name,
    phone      = EXCLUDED.phone,
    city       = EXCLUDED.city,
    email      = EXCLUDED.email`

// AddParent inserts or refreshes a parent row keyed by telegram id.
func (s *Sink) AddParent(ctx context.Context, p domain.ParentProfile) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	email := p.Email
	if !p.HasEmail() {
		email = ""
	}
	_, err := s.db.ExecContext(ctx, insertParent,
		p.TelegramID, p.FirstName, p.LastName, p.Phone, p.City, email)
	if err != nil {
		logger.Sink.Error("parent write failed",
			slog.String("event", "add_parent"),
			slog.Int64("user_id", p.TelegramID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("storage: add parent: %w", err)
	}
	logger.Sink.Info("parent saved",
		slog.String("event", "add_parent"),
		slog.Int64("user_id", p.TelegramID),
	)
	return nil
}

const insertChild = `
INSERT INTO children (parent_telegram_id, first_name, last_name, dob, grade, city,
                      interests, exode_user_id, phone, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NOW())`

// AddChild appends a child row linked to the parent's telegram id.
func (s *Sink) AddChild(ctx context.Context, parentID int64, c domain.ChildProfile) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, insertChild,
		parentID, c.FirstName, c.LastName, c.DOB, c.Grade, c.City,
		pq.Array(c.Interests), c.ExodeUserID, c.Phone)
	if err != nil {
		logger.Sink.Error("child write failed",
			slog.String("event", "add_child"),
			slog.Int64("user_id", parentID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("storage: add child: %w", err)
	}
	logger.Sink.Info("child saved",
		slog.String("event", "add_child"),
		slog.Int64("user_id", parentID),
	)
	return nil
}
