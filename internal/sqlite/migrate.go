package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition.
//
// The target schema is created in an attached in-memory database and diffed against the live one:
//
//  1. tables missing from the target are dropped,
//  2. tables missing from the live schema are created,
//  3. tables whose definition changed are rebuilt with the 12-step procedure from
//     https://www.sqlite.org/lang_altertable.html#otheralter, keeping the columns they share,
//  4. triggers and indexes are dropped, created or replaced to match.
//
// See https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachTargetSchema(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach target schema: %w", err)
	}
	defer detach()

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			// Continuing without foreign keys risks corrupting data.
			db.logger.LogAttrs(ctx, slog.LevelError, "exit after failing to re-enable foreign keys",
				slog.Any("error", fkErr))
			if killErr := syscall.Kill(syscall.Getpid(), syscall.SIGINT); killErr != nil {
				os.Exit(1)
			}
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	m := migration{tx: tx, logger: db.logger}
	if err = m.tables(ctx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = m.entities(ctx, typ); err != nil {
			return fmt.Errorf("migrate %ss: %w", typ, err)
		}
	}
	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachTargetSchema creates schemaDefinition in a fresh in-memory database attached as schemaTarget and returns
// a function detaching it.
func (db *Database) attachTargetSchema(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close target database", slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	// The ATTACH keeps the shared in-memory database alive after target is closed.
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach target database", slog.Any("error", detachErr))
		}
	}, nil
}

type migration struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// schemaEntity is a row from sqlite_schema. liveSQL is empty for entities that only exist in the target.
type schemaEntity struct {
	name      string
	liveSQL   string
	targetSQL string
}

const (
	// Entities present live but not in the target.
	queryDropped = `SELECT live.name, live.sql, ''
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND target.type IS NULL
  AND live.name NOT LIKE 'sqlite_%'
  AND live.name NOT LIKE '_litestream_%'`
	// Entities present in the target but not live.
	queryCreated = `SELECT target.name, '', target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = ?
  AND live.type IS NULL
  AND target.name NOT LIKE 'sqlite_%'
  AND target.name NOT LIKE '_litestream_%'`
	// Entities whose definition differs. Renamed tables gain quotes around their name, which are ignored.
	queryChanged = `SELECT live.name, live.sql, target.sql
FROM sqlite_schema AS live
         JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND live.name NOT LIKE 'sqlite_%'
  AND live.name NOT LIKE '_litestream_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`
)

func (m migration) tables(ctx context.Context) error {
	dropped, err := m.query(ctx, queryDropped, "table")
	if err != nil {
		return fmt.Errorf("query dropped tables: %w", err)
	}
	for _, t := range dropped {
		if err = m.exec(ctx, "dropping table", fmt.Sprintf("DROP TABLE %s", t.name)); err != nil {
			return err
		}
	}

	created, err := m.query(ctx, queryCreated, "table")
	if err != nil {
		return fmt.Errorf("query created tables: %w", err)
	}
	for _, t := range created {
		if err = m.exec(ctx, "creating table", t.targetSQL); err != nil {
			return err
		}
	}

	changed, err := m.query(ctx, queryChanged, "table")
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, t := range changed {
		if err = m.rebuildTable(ctx, t); err != nil {
			return fmt.Errorf("rebuild table %s: %w", t.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new definition under a temporary name, copies the shared columns and swaps the tables.
func (m migration) rebuildTable(ctx context.Context, t schemaEntity) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", t.name),
		slog.String("live_sql", t.liveSQL),
		slog.String("new_sql", t.targetSQL))

	tempName := t.name + "_migration_temp"
	if err := m.exec(ctx, "creating temporary table", strings.Replace(t.targetSQL, t.name, tempName, 1)); err != nil {
		return err
	}

	columns, err := m.commonColumns(ctx, t.name)
	if err != nil {
		return fmt.Errorf("query common columns: %w", err)
	}
	cols := strings.Join(columns, ", ")
	//nolint:gosec // names come from sqlite_schema.
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, cols, cols, t.name)
	if err = m.exec(ctx, "copying data", copySQL); err != nil {
		return err
	}
	if err = m.exec(ctx, "dropping old table", fmt.Sprintf("DROP TABLE %s", t.name)); err != nil {
		return err
	}
	return m.exec(ctx, "renaming table", fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, t.name))
}

// entities synchronises triggers or indexes. Changed ones are dropped and recreated.
func (m migration) entities(ctx context.Context, typ string) error {
	keyword := strings.ToUpper(typ)

	dropped, err := m.query(ctx, queryDropped, typ)
	if err != nil {
		return fmt.Errorf("query dropped: %w", err)
	}
	changed, err := m.query(ctx, queryChanged, typ)
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	// Query before dropping, otherwise the changed entities show up as new ones too.
	created, err := m.query(ctx, queryCreated, typ)
	if err != nil {
		return fmt.Errorf("query created: %w", err)
	}
	for _, e := range append(dropped, changed...) {
		if err = m.exec(ctx, "dropping "+typ, fmt.Sprintf("DROP %s IF EXISTS %s", keyword, e.name)); err != nil {
			return err
		}
	}

	for _, e := range append(created, changed...) {
		if err = m.exec(ctx, "creating "+typ, e.targetSQL); err != nil {
			return err
		}
	}
	return nil
}

func (m migration) exec(ctx context.Context, msg string, query string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := m.tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

func (m migration) query(ctx context.Context, query string, typ string) (_ []schemaEntity, err error) {
	rows, err := m.tx.QueryContext(ctx, query, typ)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var entities []schemaEntity
	for rows.Next() {
		var (
			e         schemaEntity
			liveSQL   sql.NullString
			targetSQL sql.NullString
		)
		if err = rows.Scan(&e.name, &liveSQL, &targetSQL); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.liveSQL, e.targetSQL = liveSQL.String, targetSQL.String
		entities = append(entities, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entities, nil
}

// commonColumns returns the quoted names of columns present in both the live and the target table.
func (m migration) commonColumns(ctx context.Context, table string) (_ []string, err error) {
	rows, err := m.tx.QueryContext(ctx, `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS live
         JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table_name", table))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var columns []string
	for rows.Next() {
		var column string
		if err = rows.Scan(&column); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		columns = append(columns, column)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return columns, nil
}
