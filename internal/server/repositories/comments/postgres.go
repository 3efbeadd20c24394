// Package comments stores post comments in PostgreSQL.
package comments

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

// Create inserts c. A post_id that does not exist yields common.ErrorNotFound.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	query :=
		`INSERT INTO comments (post_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, c.PostID, c.UserID, c.Content).Scan(&c.ID, &c.CreatedAt); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrorNotFound, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	query :=
		`SELECT id, post_id, user_id, content, created_at FROM comments
		 WHERE id = $1`

	c := &models.Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	query :=
		`SELECT id, post_id, user_id, content, created_at FROM comments
		 WHERE post_id = $1
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Comment
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
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

// DeleteByPost removes every comment on postID and returns how many went.
func (r *PostgresRepository) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
