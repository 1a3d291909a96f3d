//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build, no CGO required:
//
//   CGO_ENABLED=0 go build ./...
//
// Uses modernc.org/sqlite.

import (
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite"

	// BuildMode is reported by the version command
	BuildMode = "purego"
)

// dataSourceName adds the connection pragmas modernc.org/sqlite reads from
// the DSN. In-memory databases are opened as is.
func dataSourceName(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_txlock=immediate", dbPath, busyTimeoutMillis)
}
