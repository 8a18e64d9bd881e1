// Package repomanager vends repositories bound to a dbx.DBTX and applies the
// embedded goose migrations for the configured dialect.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/server/repositories/settings"
	"github.com/fastid/fastid/internal/server/repositories/tokens"
	"github.com/fastid/fastid/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Dialect() dbx.Dialect
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Settings(db dbx.DBTX) settings.Repository
}
