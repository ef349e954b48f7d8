package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"showshelf/internal/models"
)

var (
	showColumns = strings.Join(models.ColumnNames(), ", ")

	insertShowSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		models.ShowTable, showColumns, namedParams(models.ColumnNames()))

	upsertShowSQL = insertShowSQL + " ON CONFLICT(_id) DO UPDATE SET " +
		assignments(func(col string) string { return col + " = excluded." + col })

	selectShowSQL = fmt.Sprintf("SELECT %s FROM %s", showColumns, models.ShowTable)

	refreshShowSQL = fmt.Sprintf("UPDATE %s SET %s WHERE _id = :_id",
		models.ShowTable, providerAssignments())
)

// providerAssignments renders the SET list of a refresh. A daily release
// weekday (0) is kept over the weekday derived from air dates.
func providerAssignments() string {
	var parts []string
	for _, c := range models.ProviderColumns() {
		if c.Name == "airsdayofweek" {
			parts = append(parts, "airsdayofweek = CASE WHEN airsdayofweek = 0 THEN 0 ELSE :airsdayofweek END")
			continue
		}
		parts = append(parts, c.Name+" = :"+c.Name)
	}
	return strings.Join(parts, ", ")
}

func namedParams(cols []string) string {
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}
	return strings.Join(params, ", ")
}

// assignments renders one clause per non-key column.
func assignments(clause func(col string) string) string {
	var parts []string
	for _, c := range models.Columns {
		if c.PrimaryKey {
			continue
		}
		parts = append(parts, clause(c.Name))
	}
	return strings.Join(parts, ", ")
}

// ListFilter narrows List results.
type ListFilter struct {
	IncludeHidden bool
	FavoritesOnly bool
}

// ShowRepository handles Show database operations
type ShowRepository struct {
	db   sqlx.ExtContext
	base *sqlx.DB
}

// NewShowRepository creates a new ShowRepository
func NewShowRepository(sqliteDB *SQLiteDB) *ShowRepository {
	return &ShowRepository{db: sqliteDB.db, base: sqliteDB.db}
}

// NewShowRepositoryWithDB builds a repository on an existing handle.
func NewShowRepositoryWithDB(db *sqlx.DB) *ShowRepository {
	return &ShowRepository{db: db, base: db}
}

// BeginTx starts a transaction on the underlying database
func (r *ShowRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	if r.base == nil {
		return nil, errors.New("show repository: transactions not supported on tx-scoped repo")
	}
	return r.base.BeginTxx(ctx, nil)
}

// WithTx returns a repository bound to tx
func (r *ShowRepository) WithTx(tx *sqlx.Tx) *ShowRepository {
	return &ShowRepository{db: tx}
}

// Insert stores a new show. An id that is already stored yields ErrShowExists.
func (r *ShowRepository) Insert(ctx context.Context, show *models.Show) error {
	if show.ID <= 0 {
		return ErrInvalidID
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, insertShowSQL, show)
	return translateError(err)
}

// Upsert stores show, overwriting every column of an existing record with the same id.
func (r *ShowRepository) Upsert(ctx context.Context, show *models.Show) error {
	if show.ID <= 0 {
		return ErrInvalidID
	}
	_, err := sqlx.NamedExecContext(ctx, r.db, upsertShowSQL, show)
	return translateError(err)
}

// UpdateProviderFields writes only the catalogue-owned columns of show, so
// user writes that landed since show was read survive. A missing id yields
// ErrShowNotFound.
func (r *ShowRepository) UpdateProviderFields(ctx context.Context, show *models.Show) error {
	result, err := sqlx.NamedExecContext(ctx, r.db, refreshShowSQL, show)
	if err != nil {
		return translateError(err)
	}
	return requireRow(result)
}

// GetByID retrieves a show by its id
func (r *ShowRepository) GetByID(ctx context.Context, id int) (*models.Show, error) {
	show := &models.Show{}
	err := sqlx.GetContext(ctx, r.db, show, selectShowSQL+" WHERE _id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return show, nil
}

// Exists reports whether a show with id is stored.
func (r *ShowRepository) Exists(ctx context.Context, id int) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, "SELECT COUNT(1) FROM series WHERE _id = ?", id)
	return n > 0, err
}

// List returns shows sorted by their article-free title.
func (r *ShowRepository) List(ctx context.Context, filter ListFilter) ([]models.Show, error) {
	var where []string
	if !filter.IncludeHidden {
		where = append(where, "series_hidden = 0")
	}
	if filter.FavoritesOnly {
		where = append(where, "series_favorite = 1")
	}

	query := selectShowSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(series_title_noarticle, seriestitle) COLLATE NOCASE, _id"

	return r.selectShows(ctx, query)
}

// ListStale returns shows last refreshed before the given epoch milliseconds.
func (r *ShowRepository) ListStale(ctx context.Context, beforeMs int64) ([]models.Show, error) {
	return r.selectShows(ctx, selectShowSQL+" WHERE series_lastupdate < ? ORDER BY series_lastupdate, _id", beforeMs)
}

// ListUpcoming returns visible, notify-enabled shows whose next episode airs
// within [fromMs, toMs).
func (r *ShowRepository) ListUpcoming(ctx context.Context, fromMs, toMs int64) ([]models.Show, error) {
	return r.selectShows(ctx, selectShowSQL+`
		WHERE series_notify = 1 AND series_hidden = 0
		AND nexttime IS NOT NULL AND nexttime >= ? AND nexttime < ?
		ORDER BY nexttime, _id`, fromMs, toMs)
}

// Count returns the number of stored shows.
func (r *ShowRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, "SELECT COUNT(1) FROM series")
	return n, err
}

// Delete removes a show. A missing id yields ErrShowNotFound.
func (r *ShowRepository) Delete(ctx context.Context, id int) error {
	return r.exec(ctx, "DELETE FROM series WHERE _id = ?", id)
}

// SetFavorite updates the favorite flag and edit timestamp.
func (r *ShowRepository) SetFavorite(ctx context.Context, id int, favorite bool, editedSec int64) error {
	return r.exec(ctx, "UPDATE series SET series_favorite = ?, series_lastedit = ? WHERE _id = ?", favorite, editedSec, id)
}

// SetHidden updates the hidden flag and edit timestamp.
func (r *ShowRepository) SetHidden(ctx context.Context, id int, hidden bool, editedSec int64) error {
	return r.exec(ctx, "UPDATE series SET series_hidden = ?, series_lastedit = ? WHERE _id = ?", hidden, editedSec, id)
}

// SetNotify updates the notification preference and edit timestamp.
func (r *ShowRepository) SetNotify(ctx context.Context, id int, notify bool, editedSec int64) error {
	return r.exec(ctx, "UPDATE series SET series_notify = ?, series_lastedit = ? WHERE _id = ?", notify, editedSec, id)
}

// SetRatingUser stores the user's rating; nil clears it.
func (r *ShowRepository) SetRatingUser(ctx context.Context, id int, rating *int, editedSec int64) error {
	return r.exec(ctx, "UPDATE series SET series_rating_user = ?, series_lastedit = ? WHERE _id = ?", rating, editedSec, id)
}

// SetLastWatched records the most recent watch action.
func (r *ShowRepository) SetLastWatched(ctx context.Context, id int, episodeID int, watchedMs int64) error {
	return r.exec(ctx, "UPDATE series SET series_lastwatchedid = ?, series_lastwatched_ms = ? WHERE _id = ?", episodeID, watchedMs, id)
}

// SetUnwatchedCount stores an externally computed unwatched count.
func (r *ShowRepository) SetUnwatchedCount(ctx context.Context, id int, count int) error {
	return r.exec(ctx, "UPDATE series SET series_unwatched_count = ? WHERE _id = ?", count, id)
}

func (r *ShowRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	return requireRow(result)
}

func (r *ShowRepository) selectShows(ctx context.Context, query string, args ...any) ([]models.Show, error) {
	var shows []models.Show
	if err := sqlx.SelectContext(ctx, r.db, &shows, query, args...); err != nil {
		return nil, err
	}
	return shows, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShowNotFound
	}
	return nil
}
