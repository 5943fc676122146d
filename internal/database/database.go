package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/glotchimo/afkguard/internal/models"
	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/graxinc/errutil"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrDuplicateGuild = errors.New("guild config already exists")

type Database struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewDatabase opens the SQLite file at path in WAL mode and applies pending migrations.
func NewDatabase(l *slog.Logger, path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errutil.With(err)
		}
	}

	if err := Migrate(l, path); err != nil {
		return nil, errutil.With(err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errutil.With(err)
	}

	cache := sq.NewStmtCache(db)
	return &Database{l: l, db: db, builder: sq.StatementBuilder.RunWith(cache)}, nil
}

// dsn applies the pragmas to every pooled connection, not just the first.
func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

func (db *Database) Close() error {
	return db.db.Close()
}

// Migrate runs the embedded migrations on a dedicated connection, which the
// migrate driver closes when done.
func Migrate(l *slog.Logger, path string) error {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return errutil.With(err)
	}

	driver, err := msqlite.WithInstance(conn, &msqlite.Config{})
	if err != nil {
		conn.Close()
		return errutil.With(err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return errutil.With(err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		source.Close()
		driver.Close()
		return errutil.With(err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

func (db *Database) Create(ctx context.Context, m models.Mappable) error {
	q := db.builder.
		Insert(string(m.Table())).
		SetMap(m.Map())

	if _, err := q.ExecContext(ctx); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %w", ErrDuplicateGuild, err)
		}
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Delete(ctx context.Context, table models.Table, where sq.Eq) error {
	q := db.builder.
		Delete(string(table)).
		Where(where)

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Count(ctx context.Context, table models.Table, where sq.Eq) (int, error) {
	var count int

	q := db.builder.
		Select("COUNT(*)").
		From(string(table)).
		Where(where)

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}

// CreateGuildConfig inserts a fresh row and fails with ErrDuplicateGuild if
// one already exists for the id.
func (db *Database) CreateGuildConfig(ctx context.Context, g models.GuildConfig) error {
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	if g.ExemptRoleIDs == nil {
		g.ExemptRoleIDs = []string{}
	}
	if g.AdminRoleIDs == nil {
		g.AdminRoleIDs = []string{}
	}

	return db.Create(ctx, g)
}

// FindGuildConfig returns nil without error when the guild has no row.
func (db *Database) FindGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	q := db.builder.
		Select(models.GuildConfigColumns...).
		From(string(models.TableGuildConfigs)).
		Where(sq.Eq{models.ColGuildID: guildID})

	g, err := db.scanGuildConfig(q.QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errutil.Wrap(err)
	}

	return g, nil
}

// UpsertGuildConfig inserts the guild with defaults for anything u leaves
// absent, or on conflict overwrites exactly the columns u touches. The merge
// is a single statement so concurrent writers serialize per field in the engine.
func (db *Database) UpsertGuildConfig(ctx context.Context, u models.GuildConfigUpdate) (*models.GuildConfig, error) {
	now := time.Now().UTC()

	row := models.NewGuildConfig(u.GuildID)
	row.CreatedAt, row.UpdatedAt = now, now
	u.Apply(&row)

	sets := make([]string, 0, len(models.GuildConfigColumns))
	for _, col := range u.Columns() {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	sets = append(sets, fmt.Sprintf("%s = excluded.%s", models.ColUpdatedAt, models.ColUpdatedAt))

	q := db.builder.
		Insert(string(models.TableGuildConfigs)).
		SetMap(row.Map()).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
			models.ColGuildID,
			strings.Join(sets, ", "),
			strings.Join(models.GuildConfigColumns, ", "),
		))

	g, err := db.scanGuildConfig(q.QueryRowContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}

	return g, nil
}

// DeleteGuildConfig is a no-op for unknown ids.
func (db *Database) DeleteGuildConfig(ctx context.Context, guildID string) error {
	return db.Delete(ctx, models.TableGuildConfigs, sq.Eq{models.ColGuildID: guildID})
}

func (db *Database) CountEnabled(ctx context.Context) (int, error) {
	return db.Count(ctx, models.TableGuildConfigs, sq.Eq{models.ColEnabled: true})
}

func (db *Database) scanGuildConfig(row sq.RowScanner) (*models.GuildConfig, error) {
	var (
		g                 models.GuildConfig
		afk, warning      sql.NullInt64
		channel           sql.NullString
		exempt, admin     sql.NullString
		created, modified int64
	)

	if err := row.Scan(
		&g.GuildID,
		&g.Enabled,
		&afk,
		&warning,
		&channel,
		&exempt,
		&admin,
		&created,
		&modified,
	); err != nil {
		return nil, err
	}

	if afk.Valid {
		v := int(afk.Int64)
		g.AFKTimeoutSeconds = &v
	}
	if warning.Valid {
		v := int(warning.Int64)
		g.WarningSecondsBefore = &v
	}
	if channel.Valid {
		g.WarningChannelID = &channel.String
	}

	g.ExemptRoleIDs = db.decodeIDs(g.GuildID, models.ColExemptRoleIDs, exempt)
	g.AdminRoleIDs = db.decodeIDs(g.GuildID, models.ColAdminRoleIDs, admin)
	g.CreatedAt = time.UnixMilli(created).UTC()
	g.UpdatedAt = time.UnixMilli(modified).UTC()

	return &g, nil
}

func (db *Database) decodeIDs(guildID, field string, raw sql.NullString) []string {
	res := DecodeIDs(raw)
	if !res.OK() {
		db.l.Warn("malformed id array in guild config",
			"guild", guildID,
			"field", field,
			"raw", raw.String,
			"reason", string(res.Failure),
			"detail", res.Detail,
		)
	}
	return res.IDs
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}

	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
