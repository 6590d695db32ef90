package db

import (
	"database/sql"
)

// Database is a connectable handle over a database/sql pool.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
