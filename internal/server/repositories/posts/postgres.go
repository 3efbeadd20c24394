// Package posts stores user posts in PostgreSQL.
package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/models"
)

const postColumns = `id, user_id, title, description, image, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*models.Post, error) {
	p := &models.Post{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO posts (user_id, title, description, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, post.UserID, post.Title, post.Description, post.Image).
		Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return post, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, title, description string) (*models.Post, error) {
	query :=
		`UPDATE posts SET title = $2, description = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, title, description))
}

func (r *PostgresRepository) UpdateImage(ctx context.Context, id, image string) (*models.Post, error) {
	query :=
		`UPDATE posts SET image = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + postColumns
	return scanPost(r.db.QueryRowContext(ctx, query, id, image))
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
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
