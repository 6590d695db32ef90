package persistence

import (
	"database/sql"

	"github.com/dfryer1193/ciel/gallery/domain"
	"github.com/dfryer1193/ciel/shared/db"
)

// NewTransactor returns the domain.Transactor backing SQLiteTagIndex, so
// services can group index calls into one transaction.
func NewTransactor(sqlDB *sql.DB) domain.Transactor {
	return db.NewTxRunner(sqlDB)
}
