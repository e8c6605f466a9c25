package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"usermgmt/internal/logger"
)

// CreateDatabaseIfNotExists connects to the default postgres database and
// creates the target database when missing. Connection string must be in URL
// form.
func CreateDatabaseIfNotExists(connString string) error {
	u, err := url.Parse(connString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("connection string has no database name")
	}

	root := *u
	root.Path = "/postgres"

	db, err := sql.Open("postgres", root.String())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	var exists bool
	err = db.QueryRow("SELECT 1 FROM pg_database WHERE datname = $1", dbName).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		if _, err := db.Exec("CREATE DATABASE " + dbName); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		logger.L().Info("database created", zap.String("name", dbName))
	}

	return nil
}
