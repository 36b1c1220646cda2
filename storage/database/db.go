// Package database manages the postgres template mirror: connection, bootstrap and migrations.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/digitalmadrasa/madrasa/assets"
	"github.com/digitalmadrasa/madrasa/core"
)

const (
	maintenanceDB    = "postgres"
	pingAttempts     = 30
	bootstrapTimeout = 30 * time.Second
)

// dsn is the connection URL of dbName, as the admin role when asked and configured.
func dsn(dbName string, admin bool, conf core.DatabaseConfig) string {
	user := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	q := make(url.Values)
	q.Set("sslmode", "require")
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	q.Set("timezone", "utc")
	q.Set("application_name", "madrasa-certificates")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     user,
		Host:     conf.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf.Database))
}

// Connect opens the template mirror database and waits for it to answer.
func Connect(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf.Database))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	if err = ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "pinging database")
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sqlx.DB, query, name string) (bool, error) {
	var ok bool
	if err := db.GetContext(ctx, &ok, query, name); err != nil {
		return false, err
	}
	return ok, nil
}

// ensureRole creates the app role, unless it exists.
func ensureRole(ctx context.Context, db *sqlx.DB, conf core.DatabaseConfig) error {
	if conf.User == "" {
		return nil
	}
	ok, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", conf.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if ok {
		return nil
	}
	q := "CREATE USER " + pq.QuoteIdentifier(conf.User) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(conf.Password)
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	return nil
}

// ensureDB creates the mirror database, unless it exists.
func ensureDB(ctx context.Context, db *sqlx.DB, conf core.DatabaseConfig) error {
	ok, err := exists(ctx, db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if ok {
		return nil
	}
	if _, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(conf.Name)); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

func bootstrap(ctx context.Context, admin bool, conf core.DatabaseConfig, fn func(context.Context, *sqlx.DB, core.DatabaseConfig) error) error {
	db, err := sqlx.Open(conf.Engine, dsn(maintenanceDB, admin, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(ctx, db.DB); err != nil {
		return err
	}
	return fn(ctx, db, conf)
}

// CreateIfNotExist creates the app role (as admin) then the mirror database (as the app role).
func CreateIfNotExist(conf *core.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()

	if err := bootstrap(ctx, true, conf.Database, ensureRole); err != nil {
		return err
	}
	return bootstrap(ctx, false, conf.Database, ensureDB)
}

// Migrate runs a goose command ("up" when empty) against the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	if command == "" {
		command = "up"
	}
	if err := goose.RunFS(command, db, assets.FS, assets.MigrationsDir, args...); err != nil {
		return errors.Wrapf(err, "migrating database (%s)", command)
	}
	return nil
}
