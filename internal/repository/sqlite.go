package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"showshelf/internal/models"
)

// SQLiteDB wraps the database connection
type SQLiteDB struct {
	db *sqlx.DB
}

// NewSQLiteDB creates a new SQLite database connection with connection pool settings
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sqlx.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Concurrent writers wait on the DSN busy timeout
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDB{db: db}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_busy_timeout=5000"
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for callers that need raw access (backups, tests).
func (s *SQLiteDB) DB() *sqlx.DB {
	return s.db
}

// CreateTableSQL renders the series table definition from models.Columns.
func CreateTableSQL() string {
	defs := make([]string, len(models.Columns))
	for i, c := range models.Columns {
		defs[i] = "\t" + c.Definition()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", models.ShowTable, strings.Join(defs, ",\n"))
}

// InitSchema creates the series table and indexes, then runs migrations
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(CreateTableSQL()); err != nil {
		return fmt.Errorf("create %s table: %w", models.ShowTable, err)
	}

	if err := s.runMigrations(); err != nil {
		return err
	}

	indexes := `
	CREATE INDEX IF NOT EXISTS idx_series_title_noarticle ON series(series_title_noarticle);
	CREATE INDEX IF NOT EXISTS idx_series_favorite ON series(series_favorite);
	CREATE INDEX IF NOT EXISTS idx_series_hidden ON series(series_hidden);
	CREATE INDEX IF NOT EXISTS idx_series_nexttime ON series(nexttime);
	`
	if _, err := s.db.Exec(indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// runMigrations adds any mapped column missing from a series table created
// by an older build, using the column's declared default.
func (s *SQLiteDB) runMigrations() error {
	existing, err := s.tableColumns(models.ShowTable)
	if err != nil {
		return err
	}

	var missing []models.Column
	for _, c := range models.Columns {
		if !existing[c.Name] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range missing {
		if c.PrimaryKey || c.NotNull {
			return fmt.Errorf("migrate %s: required column %s missing, table must be recreated", models.ShowTable, c.Name)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", models.ShowTable, c.Definition())
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s: add column %s: %w", models.ShowTable, c.Name, err)
		}
		zap.S().Infow("schema migrated", "table", models.ShowTable, "column", c.Name)
	}

	return tx.Commit()
}

// tableColumns returns the set of column names present on table.
func (s *SQLiteDB) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Queryx(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var info struct {
			CID        int     `db:"cid"`
			Name       string  `db:"name"`
			Type       string  `db:"type"`
			NotNull    bool    `db:"notnull"`
			Default    *string `db:"dflt_value"`
			PrimaryKey int     `db:"pk"`
		}
		if err := rows.StructScan(&info); err != nil {
			return nil, err
		}
		cols[info.Name] = true
	}
	return cols, rows.Err()
}
