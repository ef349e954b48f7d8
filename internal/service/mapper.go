package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"showshelf/internal/models"
	"showshelf/internal/tmdb"
)

// Normalized show statuses stored in the status column.
const (
	StatusContinuing = "continuing"
	StatusEnded      = "ended"
	StatusUpcoming   = "upcoming"
)

// GenreSeparator joins genre names into the single genres column.
const GenreSeparator = "|"

// countryTimeZones maps broadcast countries to the timezone their air times are given in.
var countryTimeZones = map[string]string{
	"US": "America/New_York",
	"CA": "America/Toronto",
	"GB": "Europe/London",
	"IE": "Europe/Dublin",
	"DE": "Europe/Berlin",
	"AT": "Europe/Vienna",
	"FR": "Europe/Paris",
	"ES": "Europe/Madrid",
	"IT": "Europe/Rome",
	"NL": "Europe/Amsterdam",
	"SE": "Europe/Stockholm",
	"DK": "Europe/Copenhagen",
	"NO": "Europe/Oslo",
	"FI": "Europe/Helsinki",
	"PL": "Europe/Warsaw",
	"JP": "Asia/Tokyo",
	"KR": "Asia/Seoul",
	"CN": "Asia/Shanghai",
	"TW": "Asia/Taipei",
	"IN": "Asia/Kolkata",
	"AU": "Australia/Sydney",
	"NZ": "Pacific/Auckland",
	"BR": "America/Sao_Paulo",
	"MX": "America/Mexico_City",
}

// InferTimeZone returns the timezone identifier for a broadcast country, or
// nil when the country is unknown.
func InferTimeZone(country string) *string {
	if tz, ok := countryTimeZones[strings.ToUpper(country)]; ok {
		return models.Ptr(tz)
	}
	return nil
}

// NormalizeStatus maps TMDB status strings onto the stored status values.
func NormalizeStatus(status string) string {
	switch status {
	case "Returning Series":
		return StatusContinuing
	case "Ended", "Canceled":
		return StatusEnded
	case "In Production", "Planned", "Pilot":
		return StatusUpcoming
	}
	return strings.ToLower(status)
}

// BuildShow creates a defaulted record from TMDB details.
func BuildShow(details *tmdb.TVDetails, language string, nowMs int64) *models.Show {
	show := models.NewShow(details.ID, details.Name)
	ApplyDetails(show, details, language, nowMs)
	return show
}

// ApplyDetails overwrites the provider-owned attributes of show with details.
// User-owned attributes (flags, rating, watch data, unwatched count) are left alone.
func ApplyDetails(show *models.Show, details *tmdb.TVDetails, language string, nowMs int64) {
	show.Title = details.Name
	show.TitleNoArticle = models.Ptr(models.TrimLeadingArticle(details.Name))
	show.Overview = details.Overview
	show.Status = NormalizeStatus(details.Status)
	show.Poster = details.PosterPath
	show.Language = language
	show.IMDBID = details.ExternalIDs.IMDBID

	show.ReleaseCountry = nil
	show.ReleaseTimeZone = nil
	if len(details.OriginCountry) > 0 {
		show.ReleaseCountry = models.Ptr(details.OriginCountry[0])
		show.ReleaseTimeZone = InferTimeZone(details.OriginCountry[0])
	}

	show.FirstRelease = nil
	if details.FirstAirDate != "" {
		show.FirstRelease = models.Ptr(details.FirstAirDate)
	}

	genres := make([]string, 0, len(details.Genres))
	for _, g := range details.Genres {
		genres = append(genres, g.Name)
	}
	show.Genres = strings.Join(genres, GenreSeparator)

	show.Network = ""
	if len(details.Networks) > 0 {
		show.Network = details.Networks[0].Name
	}

	show.Runtime = ""
	if len(details.EpisodeRunTime) > 0 {
		show.Runtime = strconv.Itoa(details.EpisodeRunTime[0])
	}

	show.RatingGlobal = nil
	show.RatingVotes = nil
	if details.VoteCount > 0 {
		show.RatingGlobal = models.Ptr(details.VoteAverage)
		show.RatingVotes = models.Ptr(details.VoteCount)
	}

	show.ContentRating = pickContentRating(details.ContentRatings.Results, show.ReleaseCountry)

	loc := location(show.ReleaseTimeZone)
	if show.ReleaseWeekday != 0 {
		if weekday, ok := releaseWeekday(details, loc); ok {
			show.ReleaseWeekday = weekday
		}
	}
	applyNextEpisode(show, details.NextEpisodeToAir, loc)

	show.LastUpdatedMs = nowMs
}

func applyNextEpisode(show *models.Show, next *tmdb.EpisodeInfo, loc *time.Location) {
	show.NextEpisode = ""
	show.NextText = ""
	show.NextAirdateText = ""
	show.NextAirdateMs = nil
	if next == nil {
		return
	}

	show.NextEpisode = strconv.Itoa(next.ID)
	show.NextText = FormatEpisodeLabel(next.SeasonNumber, next.EpisodeNumber, next.Name)

	airs, ok := airTime(next.AirDate, show.ReleaseTime, loc)
	if !ok {
		return
	}
	show.NextAirdateMs = models.Ptr(airs.UnixMilli())
	show.NextAirdateText = airs.Format("Mon, Jan 2 2006")
}

// FormatEpisodeLabel renders the human-readable label of an episode.
func FormatEpisodeLabel(season, episode int, name string) string {
	label := fmt.Sprintf("S%02dE%02d", season, episode)
	if name != "" {
		label += " - " + name
	}
	return label
}

// airTime combines an air date (YYYY-MM-DD) with an hhmm release time in loc.
// An unknown release time (-1) resolves to midnight.
func airTime(date string, releaseTime int, loc *time.Location) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, false
	}
	if releaseTime >= 0 {
		hour, minute := releaseTime/100, releaseTime%100
		if hour < 24 && minute < 60 {
			day = day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		}
	}
	return day, true
}

// releaseWeekday derives the ISO weekday (1 Monday .. 7 Sunday) from the
// next episode, falling back to the last aired one.
func releaseWeekday(details *tmdb.TVDetails, loc *time.Location) (int, bool) {
	for _, ep := range []*tmdb.EpisodeInfo{details.NextEpisodeToAir, details.LastEpisodeToAir} {
		if ep == nil {
			continue
		}
		if day, ok := airTime(ep.AirDate, -1, loc); ok {
			return isoWeekday(day.Weekday()), true
		}
	}
	return 0, false
}

func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func pickContentRating(ratings []tmdb.ContentRating, country *string) string {
	if country != nil {
		for _, r := range ratings {
			if strings.EqualFold(r.Country, *country) && r.Rating != "" {
				return r.Rating
			}
		}
	}
	for _, r := range ratings {
		if r.Rating != "" {
			return r.Rating
		}
	}
	return ""
}

func location(tz *string) *time.Location {
	if tz == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
