package sqlstore

import "errors"

var (
	ErrNilPool                  = errors.New("sqlstore: nil pool")
	ErrInvalidTable             = errors.New("sqlstore: invalid table name")
	ErrFailedToParseDBConfig    = errors.New("sqlstore: failed to parse database configuration")
	ErrFailedToOpenDBConnection = errors.New("sqlstore: failed to open database connection")
	ErrHealthcheckFailed        = errors.New("sqlstore: healthcheck failed")
	ErrSetDialect               = errors.New("sqlstore migrator: failed to set dialect")
	ErrApplyMigrations          = errors.New("sqlstore migrator: failed to apply migrations")
)
