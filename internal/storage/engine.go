package storage

import (
	"fmt"
	"strings"
)

// Engine identifies which database backend a DSN refers to.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EngineMySQL    Engine = "mysql"
	EnginePostgres Engine = "postgres"
)

// EngineFromDSN infers the engine from a connection string's scheme, per
// the driver table in SPEC_FULL.md §6. A string with no "://", no '@'
// and no ':' is treated as a bare sqlite file path, matching how sqlite
// connection strings are commonly written; its file extension is not
// examined.
func EngineFromDSN(dsn string) (Engine, error) {
	scheme := dsn
	if i := strings.Index(dsn, "://"); i >= 0 {
		scheme = dsn[:i]
	} else if !strings.Contains(dsn, "@") && !strings.Contains(dsn, ":") {
		// no scheme, no user:pass@host — assume a plain sqlite file path
		return EngineSQLite, nil
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "file":
		return EngineSQLite, nil
	case "mysql":
		return EngineMySQL, nil
	case "postgres", "postgresql":
		return EnginePostgres, nil
	default:
		return "", fmt.Errorf("storage: unknown engine scheme %q in dsn", scheme)
	}
}

// StripScheme removes a "scheme://" prefix so the remainder can be handed
// to the sqlite and mysql drivers, which expect their own DSN shape
// rather than a URL. The postgres driver takes the URL unchanged.
func StripScheme(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[i+3:]
	}
	return dsn
}
