package service

import (
	"context"

	"showshelf/internal/tmdb"
)

// ShowFetcher loads show details from the external catalogue.
type ShowFetcher interface {
	GetTVDetails(ctx context.Context, tmdbID int) (*tmdb.TVDetails, error)
	Language() string
}

// ReportSender defines capability to send the upcoming-episodes report.
type ReportSender interface {
	SendUpcomingReport(ctx context.Context) error
}
