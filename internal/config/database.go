// internal/config/database.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

const sqliteBusyTimeoutMS = 5000

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return sqliteDSN(d.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// DataDir is the directory holding a file-backed sqlite database, or "" when
// nothing has to exist on disk before opening.
func (d *DatabaseConfig) DataDir() string {
	if d.Driver != "sqlite" || inMemoryOrURI(d.Path) {
		return ""
	}
	return filepath.Dir(d.Path)
}

func sqliteDSN(path string) string {
	if inMemoryOrURI(path) || strings.Contains(path, "?") {
		return path
	}
	return fmt.Sprintf("%s?_busy_timeout=%d", path, sqliteBusyTimeoutMS)
}

func inMemoryOrURI(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:")
}
