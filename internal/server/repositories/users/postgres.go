// Package users provides the credential store: a PostgreSQL repository and an
// in-memory one with the same semantics.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/models"
)

const userColumns = `id, username, email, password_hash, refresh_token_hash,
		first_name, last_name, date_of_birth, city, state, village, gender, occupation,
		avatar, description, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var refresh sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &refresh,
		&u.FirstName, &u.LastName, &u.DateOfBirth, &u.City, &u.State, &u.Village, &u.Gender, &u.Occupation,
		&u.Avatar, &u.Description, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, mapError(err)
	}
	if refresh.Valid {
		u.RefreshTokenHash = &refresh.String
	}
	return u, nil
}

func mapError(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", common.ErrAlreadyExists, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, avatar, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Avatar, user.Description).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// FindByUsernameOrEmail matches the email column when identifier contains
// "@" and the username column otherwise, so each identifier names one row.
func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE username = $1`
	if IsEmail(identifier) {
		query = `SELECT ` + userColumns + ` FROM users
		 WHERE email = lower($1)`
	}
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id string, digest *string) error {
	query :=
		`UPDATE users SET refresh_token_hash = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, digest)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id, oldDigest, newDigest string) (bool, error) {
	query :=
		`UPDATE users SET refresh_token_hash = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token_hash = $2`

	return r.execSwap(ctx, query, id, oldDigest, newDigest)
}

func (r *PostgresRepository) ChangePassword(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	query :=
		`UPDATE users SET password_hash = $3, refresh_token_hash = NULL, updated_at = now()
		 WHERE id = $1 AND password_hash = $2`

	return r.execSwap(ctx, query, id, oldHash, newHash)
}

func (r *PostgresRepository) execSwap(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p *models.ProfileUpdate) (*models.User, error) {
	query :=
		`UPDATE users SET
			username      = COALESCE($2, username),
			email         = COALESCE(lower($3), email),
			description   = COALESCE($4, description),
			first_name    = COALESCE($5, first_name),
			last_name     = COALESCE($6, last_name),
			date_of_birth = COALESCE($7, date_of_birth),
			city          = COALESCE($8, city),
			state         = COALESCE($9, state),
			village       = COALESCE($10, village),
			gender        = COALESCE($11, gender),
			occupation    = COALESCE($12, occupation),
			updated_at    = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id,
		p.Username, p.Email, p.Description, p.FirstName, p.LastName, p.DateOfBirth,
		p.City, p.State, p.Village, p.Gender, p.Occupation))
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, id string, avatar string) (*models.User, error) {
	query :=
		`UPDATE users SET avatar = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id, avatar))
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
