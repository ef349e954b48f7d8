package models

// ShowTable is the table holding Show records.
const ShowTable = "series"

// ColumnType is the storage affinity of a column.
type ColumnType string

const (
	ColumnInteger ColumnType = "INTEGER"
	ColumnText    ColumnType = "TEXT"
	ColumnReal    ColumnType = "REAL"
)

// Column maps one Show attribute to its storage column.
// Default is the SQL literal applied when the attribute is absent; empty
// means the column has no default and is nullable. Provider columns are
// owned by the catalogue and rewritten on every refresh; the rest belong
// to the user.
type Column struct {
	Attribute  string
	Name       string
	Type       ColumnType
	Default    string
	PrimaryKey bool
	NotNull    bool
	Provider   bool
}

// Columns is the column layout of the series table, in storage order.
// Names are part of the on-disk contract and must not change.
var Columns = []Column{
	{Attribute: "id", Name: "_id", Type: ColumnInteger, PrimaryKey: true},
	{Attribute: "title", Name: "seriestitle", Type: ColumnText, NotNull: true, Provider: true},
	{Attribute: "titleNoArticle", Name: "series_title_noarticle", Type: ColumnText, Provider: true},
	{Attribute: "overview", Name: "overview", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "actorsLegacy", Name: "actors", Type: ColumnText, Default: "''"},
	{Attribute: "releaseTimeOfDay", Name: "airstime", Type: ColumnInteger, Default: "-1"},
	{Attribute: "releaseWeekday", Name: "airsdayofweek", Type: ColumnInteger, Default: "-1", Provider: true},
	{Attribute: "releaseCountry", Name: "series_country", Type: ColumnText, Provider: true},
	{Attribute: "releaseTimeZone", Name: "series_timezone", Type: ColumnText, Provider: true},
	{Attribute: "firstRelease", Name: "firstaired", Type: ColumnText, Provider: true},
	{Attribute: "genres", Name: "genres", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "network", Name: "network", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "ratingGlobal", Name: "rating", Type: ColumnReal, Provider: true},
	{Attribute: "ratingVotesCount", Name: "series_rating_votes", Type: ColumnInteger, Provider: true},
	{Attribute: "ratingUser", Name: "series_rating_user", Type: ColumnInteger},
	{Attribute: "runtimeMinutes", Name: "runtime", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "status", Name: "status", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "contentRating", Name: "contentrating", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "nextEpisodeId", Name: "next", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "posterPath", Name: "poster", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "nextAirdateEpochMs", Name: "nexttime", Type: ColumnInteger, Provider: true},
	{Attribute: "nextEpisodeText", Name: "nexttext", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "imdbId", Name: "imdbid", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "traktId", Name: "series_trakt_id", Type: ColumnInteger, Default: "0"},
	{Attribute: "isFavorite", Name: "series_favorite", Type: ColumnInteger, Default: "0"},
	{Attribute: "nextAirdateText", Name: "nexairdatetext", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "hexagonMergeComplete", Name: "series_syncenabled", Type: ColumnInteger, Default: "1"},
	{Attribute: "isHidden", Name: "series_hidden", Type: ColumnInteger, Default: "0"},
	{Attribute: "lastUpdatedEpochMs", Name: "series_lastupdate", Type: ColumnInteger, Default: "0", Provider: true},
	{Attribute: "lastEditedEpochSec", Name: "series_lastedit", Type: ColumnInteger, Default: "0"},
	{Attribute: "lastWatchedEpisodeId", Name: "series_lastwatchedid", Type: ColumnInteger, Default: "0"},
	{Attribute: "lastWatchedEpochMs", Name: "series_lastwatched_ms", Type: ColumnInteger, Default: "0"},
	{Attribute: "language", Name: "series_language", Type: ColumnText, Default: "''", Provider: true},
	{Attribute: "unwatchedCount", Name: "series_unwatched_count", Type: ColumnInteger, Default: "-1"},
	{Attribute: "notifyEnabled", Name: "series_notify", Type: ColumnInteger, Default: "1"},
}

// ColumnNames returns the column names of the series table in storage order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// ProviderColumns returns the columns a catalogue refresh rewrites.
func ProviderColumns() []Column {
	var cols []Column
	for _, c := range Columns {
		if c.Provider {
			cols = append(cols, c)
		}
	}
	return cols
}

// LookupColumn returns the column mapped to the given attribute.
func LookupColumn(attribute string) (Column, bool) {
	for _, c := range Columns {
		if c.Attribute == attribute {
			return c, true
		}
	}
	return Column{}, false
}

// Definition renders the column as a CREATE TABLE / ADD COLUMN clause.
func (c Column) Definition() string {
	def := c.Name + " " + string(c.Type)
	if c.PrimaryKey {
		def += " PRIMARY KEY"
	}
	if c.NotNull {
		def += " NOT NULL CHECK (" + c.Name + " <> '')"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}
