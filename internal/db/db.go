package db

import "database/sql"

// DB wraps the raw sql handle so stores depend on one local type.
type DB struct {
	*sql.DB
}
