//go:build sqlite_vec && !purego
// +build sqlite_vec,!purego

package storage

// Compiled with CGO and the sqlite_vec tag:
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Uses github.com/mattn/go-sqlite3.

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by this build
	DriverName = "sqlite3"

	// BuildMode is reported by the version command
	BuildMode = "cgo"
)

// dataSourceName adds the connection parameters go-sqlite3 reads from the
// DSN. In-memory databases are opened as is.
func dataSourceName(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate", dbPath, busyTimeoutMillis)
}
