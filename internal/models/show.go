package models

import "encoding/json"

// UnknownUnwatchedCount marks an unwatched count that has not been computed yet.
// The value is owned by whatever computes watched state; treat it as opaque.
const UnknownUnwatchedCount = -1

// Show represents one tracked show as persisted in the series table.
// Optional attributes without a default are pointers; nil means absent.
type Show struct {
	ID             int     `json:"id" db:"_id"`
	Title          string  `json:"title" db:"seriestitle" validate:"required"`
	TitleNoArticle *string `json:"title_no_article" db:"series_title_noarticle"`
	Overview       string  `json:"overview" db:"overview"`
	// ActorsLegacy is no longer written; cast data comes from TMDB.
	ActorsLegacy string `json:"actors" db:"actors"`

	// ReleaseTime is the local release time encoded as hhmm, e.g. 2035.
	ReleaseTime int `json:"release_time" db:"airstime"`
	// ReleaseWeekday is 1-7 (Monday-Sunday), 0 for daily.
	ReleaseWeekday  int     `json:"release_weekday" db:"airsdayofweek"`
	ReleaseCountry  *string `json:"release_country" db:"series_country"`
	ReleaseTimeZone *string `json:"release_timezone" db:"series_timezone"`
	FirstRelease    *string `json:"first_release" db:"firstaired"`

	Genres  string `json:"genres" db:"genres"`
	Network string `json:"network" db:"network"`

	RatingGlobal *float64 `json:"rating_global" db:"rating"`
	RatingVotes  *int     `json:"rating_votes" db:"series_rating_votes"`
	RatingUser   *int     `json:"rating_user" db:"series_rating_user"`

	Runtime       string `json:"runtime" db:"runtime"`
	Status        string `json:"status" db:"status"`
	ContentRating string `json:"content_rating" db:"contentrating"`

	NextEpisode     string `json:"next_episode" db:"next"`
	Poster          string `json:"poster" db:"poster"`
	NextAirdateMs   *int64 `json:"next_airdate_ms" db:"nexttime"`
	NextText        string `json:"next_text" db:"nexttext"`
	NextAirdateText string `json:"next_airdate_text" db:"nexairdatetext"`

	IMDBID  string `json:"imdb_id" db:"imdbid"`
	TraktID int    `json:"trakt_id" db:"series_trakt_id"`

	Favorite             bool `json:"favorite" db:"series_favorite"`
	HexagonMergeComplete bool `json:"hexagon_merge_complete" db:"series_syncenabled"`
	Hidden               bool `json:"hidden" db:"series_hidden"`

	LastUpdatedMs        int64 `json:"last_updated_ms" db:"series_lastupdate"`
	LastEditedSec        int64 `json:"last_edited_sec" db:"series_lastedit"`
	LastWatchedEpisodeID int   `json:"last_watched_episode_id" db:"series_lastwatchedid"`
	LastWatchedMs        int64 `json:"last_watched_ms" db:"series_lastwatched_ms"`

	Language       string `json:"language" db:"series_language"`
	UnwatchedCount int    `json:"unwatched_count" db:"series_unwatched_count"`
	Notify         bool   `json:"notify" db:"series_notify"`
}

// NewShow returns a show with every defaulted attribute set.
func NewShow(id int, title string) *Show {
	return &Show{
		ID:                   id,
		Title:                title,
		ReleaseTime:          -1,
		ReleaseWeekday:       -1,
		HexagonMergeComplete: true,
		UnwatchedCount:       UnknownUnwatchedCount,
		Notify:               true,
	}
}

// UnmarshalJSON decodes onto a defaulted show so omitted attributes keep
// their defaults instead of Go zero values.
func (s *Show) UnmarshalJSON(data []byte) error {
	type plain Show
	decoded := plain(*NewShow(0, ""))
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Show(decoded)
	return nil
}

// Ptr returns a pointer to v, for filling optional attributes.
func Ptr[T any](v T) *T {
	return &v
}
