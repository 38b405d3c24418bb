package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	driverName = "postgres"
	maxRetries = 5
)

// OpenDb opens a connection with the DB.
// If the operation fails when trying to establish a connection and the `autoCreate` flag is set to
// true, OpenDb will try to create the database set in the DSN.
func OpenDb(dsn string, autoCreate bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := connectDB(ctx, db, dsn, autoCreate); err != nil {
		return nil, fmt.Errorf("unable to establish connection with db: %v", err)
	}

	return db, nil
}

// connectDB pings the db since sql.Open only validates its arguments. If the
// database does not exist and autoCreate is set, it is created first.
func connectDB(ctx context.Context, db *sql.DB, dsn string, autoCreate bool) error {
	if err := db.PingContext(ctx); err != nil {
		var dbErr *pq.Error
		// 3D000: invalid_catalog_name
		if errors.As(err, &dbErr) && dbErr.Code == "3D000" && autoCreate {
			log.Info("postgres database does not exist, creating it...")

			if err = createDB(ctx, dsn); err != nil {
				return err
			}

			return connectDB(ctx, db, dsn, false)
		}

		return err
	}

	return nil
}

// createDB creates the database named in the dsn, which must be in URL format.
func createDB(ctx context.Context, dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return fmt.Errorf("cannot auto-create database unless the DSN uses URL format")
	}

	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsedURL.Path, "/")
	if dbName == "" {
		return fmt.Errorf("cannot auto-create when database name is empty")
	}

	// connect to the default db to issue the CREATE DATABASE
	parsedURL.Path = ""
	rootDB, err := sql.Open(driverName, parsedURL.String())
	if err != nil {
		return err
	}
	// nolint
	defer rootDB.Close()

	query := "CREATE DATABASE " + pq.QuoteIdentifier(dbName)
	log.Infof("executing query '%s'", query)
	if _, err := rootDB.ExecContext(ctx, query); err != nil {
		return err
	}

	return nil
}

func execTx(ctx context.Context, db *sql.DB, txBody func(*sql.Tx) error) error {
	var lastErr error
	for range maxRetries {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := txBody(tx); err != nil {
			//nolint:all
			tx.Rollback()

			if isConflictError(err) {
				lastErr = err
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isConflictError(err) {
				lastErr = err
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}

	return lastErr
}

// isConflictError reports serialization failures and deadlocks, which are
// safe to retry.
func isConflictError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
