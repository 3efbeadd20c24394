// Package scans stores disease scan records in PostgreSQL.
package scans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Scan) (*models.Scan, error) {
	query :=
		`INSERT INTO scans (user_id, question, response, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, s.UserID, s.Question, s.Response, s.Image).Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Scan, error) {
	query :=
		`SELECT id, user_id, question, response, image, created_at FROM scans
		 WHERE id = $1`

	s := &models.Scan{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.Question, &s.Response, &s.Image, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Scan, error) {
	query :=
		`SELECT id, user_id, question, response, image, created_at FROM scans
		 WHERE user_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*models.Scan{}
	for rows.Next() {
		s := &models.Scan{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Question, &s.Response, &s.Image, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
