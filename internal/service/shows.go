package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"showshelf/internal/metrics"
	"showshelf/internal/models"
	"showshelf/internal/repository"
	"showshelf/internal/timeutil"
)

var (
	// ErrInvalidRating is returned for user ratings outside 1-10.
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
	// ErrInvalidUnwatchedCount is returned for negative counts other than the unknown marker.
	ErrInvalidUnwatchedCount = errors.New("unwatched count must be non-negative or unknown")
)

const defaultRefreshWorkers = 4

// ShowService mediates every mutation of stored shows.
type ShowService struct {
	fetcher        ShowFetcher
	repo           *repository.ShowRepository
	refreshWorkers int
}

// NewShowService creates a new ShowService
func NewShowService(fetcher ShowFetcher, repo *repository.ShowRepository) *ShowService {
	return &ShowService{
		fetcher:        fetcher,
		repo:           repo,
		refreshWorkers: defaultRefreshWorkers,
	}
}

// SetRefreshWorkers bounds how many shows RefreshStale updates concurrently.
func (s *ShowService) SetRefreshWorkers(n int) {
	if n > 0 {
		s.refreshWorkers = n
	}
}

// Add starts tracking a show, populated from TMDB.
func (s *ShowService) Add(ctx context.Context, tmdbID int) (*models.Show, error) {
	exists, err := s.repo.Exists(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("failed to check show %d: %w", tmdbID, err)
	}
	if exists {
		return nil, repository.ErrShowExists
	}

	details, err := s.fetcher.GetTVDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}

	show := BuildShow(details, s.fetcher.Language(), timeutil.NowMillis())
	if err := s.repo.Insert(ctx, show); err != nil {
		return nil, fmt.Errorf("failed to add show %d: %w", tmdbID, err)
	}

	metrics.ShowWritesTotal.WithLabelValues("add").Inc()
	s.syncTrackedGauge(ctx)
	zap.S().Infow("show added", "id", show.ID, "title", show.Title)
	return show, nil
}

// Create stores a caller-built record, rejecting an id that is already tracked.
func (s *ShowService) Create(ctx context.Context, show *models.Show) error {
	prepareUserWrite(show)
	if err := s.repo.Insert(ctx, show); err != nil {
		return err
	}
	metrics.ShowWritesTotal.WithLabelValues("create").Inc()
	s.syncTrackedGauge(ctx)
	return nil
}

// Save stores a caller-built record, overwriting any record with the same id.
func (s *ShowService) Save(ctx context.Context, show *models.Show) error {
	prepareUserWrite(show)
	if err := s.repo.Upsert(ctx, show); err != nil {
		return err
	}
	metrics.ShowWritesTotal.WithLabelValues("save").Inc()
	s.syncTrackedGauge(ctx)
	return nil
}

func prepareUserWrite(show *models.Show) {
	if show.TitleNoArticle == nil && show.Title != "" {
		show.TitleNoArticle = models.Ptr(models.TrimLeadingArticle(show.Title))
	}
	show.LastEditedSec = timeutil.NowSeconds()
}

// Get returns a stored show.
func (s *ShowService) Get(ctx context.Context, id int) (*models.Show, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns stored shows matching filter.
func (s *ShowService) List(ctx context.Context, filter repository.ListFilter) ([]models.Show, error) {
	shows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if shows == nil {
		shows = []models.Show{}
	}
	return shows, nil
}

// Upcoming returns notify-enabled shows with an episode airing within window from now.
func (s *ShowService) Upcoming(ctx context.Context, window time.Duration) ([]models.Show, error) {
	from := timeutil.Now()
	return s.repo.ListUpcoming(ctx, from.UnixMilli(), from.Add(window).UnixMilli())
}

// Refresh re-fetches a tracked show and rewrites its provider attributes.
// User attributes are never written, so concurrent user edits survive.
func (s *ShowService) Refresh(ctx context.Context, id int) (*models.Show, error) {
	show, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := s.fetcher.GetTVDetails(ctx, id)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	ApplyDetails(show, details, s.fetcher.Language(), timeutil.NowMillis())
	if err := s.repo.UpdateProviderFields(ctx, show); err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to update show %d: %w", id, err)
	}

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.ShowWritesTotal.WithLabelValues("refresh").Inc()

	// User attributes may have changed while TMDB was queried
	return s.repo.GetByID(ctx, id)
}

// RefreshStale refreshes every show not updated within maxAge. Individual
// failures are logged and skipped; the number of refreshed shows is returned.
func (s *ShowService) RefreshStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := timeutil.Now().Add(-maxAge).UnixMilli()
	stale, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale shows: %w", err)
	}

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.refreshWorkers)
	for _, show := range stale {
		id := show.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.Refresh(gctx, id); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				zap.S().Warnw("show refresh failed", "id", id, "err", err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(refreshed.Load()), err
}

// Remove stops tracking a show.
func (s *ShowService) Remove(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ShowWritesTotal.WithLabelValues("remove").Inc()
	s.syncTrackedGauge(ctx)
	zap.S().Infow("show removed", "id", id)
	return nil
}

// SetFavorite toggles the favorite flag.
func (s *ShowService) SetFavorite(ctx context.Context, id int, favorite bool) error {
	return s.userWrite("favorite", s.repo.SetFavorite(ctx, id, favorite, timeutil.NowSeconds()))
}

// SetHidden toggles the hidden flag.
func (s *ShowService) SetHidden(ctx context.Context, id int, hidden bool) error {
	return s.userWrite("hidden", s.repo.SetHidden(ctx, id, hidden, timeutil.NowSeconds()))
}

// SetNotify toggles new-episode notifications.
func (s *ShowService) SetNotify(ctx context.Context, id int, notify bool) error {
	return s.userWrite("notify", s.repo.SetNotify(ctx, id, notify, timeutil.NowSeconds()))
}

// Rate stores the user's rating (1-10); nil clears it.
func (s *ShowService) Rate(ctx context.Context, id int, rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 10) {
		return ErrInvalidRating
	}
	return s.userWrite("rating", s.repo.SetRatingUser(ctx, id, rating, timeutil.NowSeconds()))
}

// MarkWatched records a watch action for episodeID.
func (s *ShowService) MarkWatched(ctx context.Context, id int, episodeID int) error {
	return s.userWrite("watched", s.repo.SetLastWatched(ctx, id, episodeID, timeutil.NowMillis()))
}

// SetUnwatchedCount stores an externally computed count. The value is not
// interpreted beyond rejecting negatives other than UnknownUnwatchedCount.
func (s *ShowService) SetUnwatchedCount(ctx context.Context, id int, count int) error {
	if count < 0 && count != models.UnknownUnwatchedCount {
		return ErrInvalidUnwatchedCount
	}
	return s.userWrite("unwatched_count", s.repo.SetUnwatchedCount(ctx, id, count))
}

func (s *ShowService) userWrite(op string, err error) error {
	if err != nil {
		return err
	}
	metrics.ShowWritesTotal.WithLabelValues(op).Inc()
	return nil
}

func (s *ShowService) syncTrackedGauge(ctx context.Context) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		zap.S().Warnw("count shows failed", "err", err)
		return
	}
	metrics.TrackedShows.Set(float64(n))
}

// SyncMetrics publishes the current number of tracked shows.
func (s *ShowService) SyncMetrics(ctx context.Context) {
	s.syncTrackedGauge(ctx)
}
