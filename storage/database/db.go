package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/campusgrid/core"
	appfs "github.com/trezcool/campusgrid/fs"
)

const (
	adminDBName = "postgres"

	pingAttempts = 30
	pingBackoff  = 100 * time.Millisecond
)

// dsn builds the postgres URL of `dbName`, connecting as the admin user if asked (and configured).
func dsn(dbName string, admin bool, conf *core.Config) string {
	db := conf.Database
	user := url.UserPassword(db.User, db.Password)
	if admin && db.AdminUser != "" {
		user = url.UserPassword(db.AdminUser, db.AdminPassword)
	}

	q := url.Values{"sslmode": {"require"}, "timezone": {"utc"}}
	if db.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   db.Engine,
		User:     user,
		Host:     db.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens the app database with the configured pool limits.
func Open(conf *core.Config) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if n := conf.Database.MaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n := conf.Database.MaxIdleConns; n > 0 {
		db.SetMaxIdleConns(n)
	}
	return db, nil
}

// waitReady pings the database until it answers, backing off a little longer after each attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(attempt) * pingBackoff):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// exists runs a "SELECT EXISTS(...)" query.
func exists(ctx context.Context, db core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var ok bool
	if err := db.QueryRowContext(ctx, "SELECT EXISTS("+query+")", args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// createAppUser creates the (CREATEDB) app role, unless it exists already.
func createAppUser(ctx context.Context, db core.DBExecutor, conf *core.Config) error {
	user := conf.Database.User
	if user == "" {
		return nil
	}
	found, err := exists(ctx, db, "SELECT 1 FROM pg_roles WHERE rolname = $1", user)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if found {
		return nil
	}

	// CREATE ROLE takes no bind parameters
	q := "CREATE USER " + pq.QuoteIdentifier(user) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(conf.Database.Password)
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "creating app user")
	}
	return nil
}

// createDB creates the app database, owned by the connected user, unless it exists already.
func createDB(ctx context.Context, db core.DBExecutor, conf *core.Config) error {
	name := conf.Database.Name
	found, err := exists(ctx, db, "SELECT 1 FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if found {
		return nil
	}
	if _, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// CreateIfNotExist creates the app user (as admin), then the app database (as the app user).
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	admin, err := sql.Open(conf.Database.Engine, dsn(adminDBName, true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = admin.Close() }()

	if err = waitReady(ctx, admin); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(ctx, admin, conf); err != nil {
		return err
	}

	app, err := sql.Open(conf.Database.Engine, dsn(adminDBName, false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = app.Close() }()
	return createDB(ctx, app, conf)
}

// Migrate applies the pending migrations.
func Migrate(db *sql.DB) error {
	if err := goose.RunFS("up", db, appfs.FS, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
