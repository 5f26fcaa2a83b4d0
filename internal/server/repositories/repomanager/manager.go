package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/hpcdrive/internal/dbx"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/filemeta"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/shares"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/signing"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Items(db dbx.DBTX) items.Repository
	FileMetadata(db dbx.DBTX) filemeta.Repository
	Shares(db dbx.DBTX) shares.Repository
	SigningRequests(db dbx.DBTX) signing.Repository
}
