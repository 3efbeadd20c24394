package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/comments"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/likes"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/posts"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/scans"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Posts(db dbx.DBTX) posts.Repository
	Comments(db dbx.DBTX) comments.Repository
	Likes(db dbx.DBTX) likes.Repository
	Scans(db dbx.DBTX) scans.Repository
}
