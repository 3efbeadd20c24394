// Package likes stores post likes in PostgreSQL.
package likes

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Toggle runs as one statement so two concurrent toggles by the same user
// cannot both insert.
func (r *PostgresRepository) Toggle(ctx context.Context, postID, userID string) (bool, error) {
	query :=
		`WITH removed AS (
			DELETE FROM likes WHERE post_id = $1 AND user_id = $2
			RETURNING 1
		 ), added AS (
			INSERT INTO likes (post_id, user_id)
			SELECT $1::uuid, $2::uuid
			WHERE NOT EXISTS (SELECT 1 FROM removed)
			ON CONFLICT (post_id, user_id) DO NOTHING
			RETURNING 1
		 )
		 SELECT EXISTS (SELECT 1 FROM added)`

	var liked bool
	if err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&liked); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: %w", common.ErrorNotFound, err)
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return liked, nil
}

func (r *PostgresRepository) ListLikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	query :=
		`SELECT post_id FROM likes
		 WHERE user_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM likes WHERE post_id = $1`, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM likes WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
