package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"showshelf/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "showshelf.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return db
}

func TestInsertWithDefaultsReadsBackDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	if err := repo.Insert(ctx, models.NewShow(100, "Example Show")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := repo.GetByID(ctx, 100)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Favorite {
		t.Errorf("favorite read back true")
	}
	if !got.HexagonMergeComplete {
		t.Errorf("hexagon merge complete read back false")
	}
	if got.UnwatchedCount != models.UnknownUnwatchedCount {
		t.Errorf("unwatched count = %d, want %d", got.UnwatchedCount, models.UnknownUnwatchedCount)
	}
	if !reflect.DeepEqual(got, models.NewShow(100, "Example Show")) {
		t.Errorf("round trip mismatch: %+v", *got)
	}
}

// Column defaults declared in the table agree with NewShow.
func TestColumnDefaultsMatchNewShow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewShowRepository(db)

	if _, err := db.DB().Exec("INSERT INTO series (_id, seriestitle) VALUES (5, 'Raw')"); err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	got, err := repo.GetByID(ctx, 5)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if want := models.NewShow(5, "Raw"); !reflect.DeepEqual(got, want) {
		t.Fatalf("column defaults differ:\n got %+v\nwant %+v", *got, *want)
	}
}

func TestTitleConstraint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewShowRepository(db)

	if err := repo.Insert(ctx, models.NewShow(1, "")); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Insert empty title: got %v, want ErrTitleRequired", err)
	}
	if err := repo.Upsert(ctx, models.NewShow(1, "")); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Upsert empty title: got %v, want ErrTitleRequired", err)
	}

	_, err := db.DB().Exec("INSERT INTO series (_id, seriestitle) VALUES (2, NULL)")
	if !errors.Is(translateError(err), ErrTitleRequired) {
		t.Errorf("NULL title: got %v, want ErrTitleRequired", err)
	}

	if err := repo.Insert(ctx, models.NewShow(3, "Severance")); err != nil {
		t.Fatalf("Insert valid title: %v", err)
	}
	show, _ := repo.GetByID(ctx, 3)
	show.Title = ""
	if err := repo.UpdateProviderFields(ctx, show); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("refresh to empty title: got %v, want ErrTitleRequired", err)
	}

	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestInvalidIDRejected(t *testing.T) {
	repo := NewShowRepository(newTestDB(t))
	if err := repo.Insert(context.Background(), models.NewShow(0, "Zero")); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("got %v, want ErrInvalidID", err)
	}
}

func TestInsertInsertConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	if err := repo.Insert(ctx, models.NewShow(42, "First")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := repo.Insert(ctx, models.NewShow(42, "Second"))
	if !errors.Is(err, ErrShowExists) {
		t.Fatalf("second insert: got %v, want ErrShowExists", err)
	}

	got, _ := repo.GetByID(ctx, 42)
	if got.Title != "First" {
		t.Errorf("rejected insert changed title to %q", got.Title)
	}
}

func TestInsertThenUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	first := models.NewShow(42, "First")
	first.Favorite = true
	first.RatingGlobal = models.Ptr(8.5)
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := models.NewShow(42, "Second")
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, _ := repo.GetByID(ctx, 42)
	if !reflect.DeepEqual(got, second) {
		t.Fatalf("upsert did not overwrite: %+v", *got)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestWritesToMissingShow(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	if err := repo.UpdateProviderFields(ctx, models.NewShow(9, "Ghost")); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("UpdateProviderFields missing: got %v", err)
	}
	if err := repo.Delete(ctx, 9); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("Delete missing: got %v", err)
	}
	if _, err := repo.GetByID(ctx, 9); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("GetByID missing: got %v", err)
	}
	if err := repo.SetFavorite(ctx, 9, true, 1); !errors.Is(err, ErrShowNotFound) {
		t.Errorf("SetFavorite missing: got %v", err)
	}

	if err := repo.Insert(ctx, models.NewShow(9, "Ghost")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Delete(ctx, 9); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := repo.Exists(ctx, 9); ok {
		t.Errorf("show still exists after delete")
	}
}

func TestFieldUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))
	if err := repo.Insert(ctx, models.NewShow(7, "Fargo")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	steps := []error{
		repo.SetFavorite(ctx, 7, true, 1000),
		repo.SetHidden(ctx, 7, true, 1001),
		repo.SetNotify(ctx, 7, false, 1002),
		repo.SetRatingUser(ctx, 7, models.Ptr(9), 1003),
		repo.SetLastWatched(ctx, 7, 5551, 1700000000000),
		repo.SetUnwatchedCount(ctx, 7, 4),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	got, _ := repo.GetByID(ctx, 7)
	want := models.NewShow(7, "Fargo")
	want.Favorite = true
	want.Hidden = true
	want.Notify = false
	want.RatingUser = models.Ptr(9)
	want.LastEditedSec = 1003
	want.LastWatchedEpisodeID = 5551
	want.LastWatchedMs = 1700000000000
	want.UnwatchedCount = 4
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", *got, *want)
	}

	if err := repo.SetRatingUser(ctx, 7, nil, 1004); err != nil {
		t.Fatalf("clear rating: %v", err)
	}
	got, _ = repo.GetByID(ctx, 7)
	if got.RatingUser != nil {
		t.Errorf("rating not cleared: %d", *got.RatingUser)
	}
}

func TestListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	mk := func(id int, title string, favorite, hidden bool) {
		s := models.NewShow(id, title)
		s.TitleNoArticle = models.Ptr(models.TrimLeadingArticle(title))
		s.Favorite = favorite
		s.Hidden = hidden
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert %s: %v", title, err)
		}
	}
	mk(1, "The Wire", false, false)
	mk(2, "Andor", true, false)
	mk(3, "The Bear", true, true)
	mk(4, "Succession", false, false)

	titles := func(shows []models.Show) []string {
		out := make([]string, len(shows))
		for i, s := range shows {
			out[i] = s.Title
		}
		return out
	}

	visible, err := repo.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got, want := titles(visible), []string{"Andor", "Succession", "The Wire"}; !reflect.DeepEqual(got, want) {
		t.Errorf("visible = %v, want %v", got, want)
	}

	all, _ := repo.List(ctx, ListFilter{IncludeHidden: true})
	if got, want := titles(all), []string{"Andor", "The Bear", "Succession", "The Wire"}; !reflect.DeepEqual(got, want) {
		t.Errorf("all = %v, want %v", got, want)
	}

	favs, _ := repo.List(ctx, ListFilter{IncludeHidden: true, FavoritesOnly: true})
	if got, want := titles(favs), []string{"Andor", "The Bear"}; !reflect.DeepEqual(got, want) {
		t.Errorf("favorites = %v, want %v", got, want)
	}
}

func TestListUpcomingAndStale(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	airing := models.NewShow(1, "Airing")
	airing.NextAirdateMs = models.Ptr(int64(5_000))
	airing.LastUpdatedMs = 100

	muted := models.NewShow(2, "Muted")
	muted.NextAirdateMs = models.Ptr(int64(6_000))
	muted.Notify = false
	muted.LastUpdatedMs = 900

	later := models.NewShow(3, "Later")
	later.NextAirdateMs = models.Ptr(int64(50_000))
	later.LastUpdatedMs = 2_000

	unknown := models.NewShow(4, "Unknown")

	for _, s := range []*models.Show{airing, muted, later, unknown} {
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert %s: %v", s.Title, err)
		}
	}

	upcoming, err := repo.ListUpcoming(ctx, 1_000, 10_000)
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != 1 {
		t.Errorf("upcoming = %+v, want only show 1", upcoming)
	}

	stale, err := repo.ListStale(ctx, 1_000)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	var ids []int
	for _, s := range stale {
		ids = append(ids, s.ID)
	}
	if want := []int{4, 1, 2}; !reflect.DeepEqual(ids, want) {
		t.Errorf("stale ids = %v, want %v", ids, want)
	}
}

func TestTransactionScopedRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := repo.WithTx(tx).Insert(ctx, models.NewShow(11, "Rolled Back")); err != nil {
		t.Fatalf("tx insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if ok, _ := repo.Exists(ctx, 11); ok {
		t.Errorf("rolled back insert is visible")
	}
	if _, err := repo.WithTx(tx).BeginTx(ctx); err == nil {
		t.Errorf("nested BeginTx should fail")
	}
}

func TestUpdateProviderFieldsKeepsUserColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	stored := models.NewShow(7, "Old Title")
	stored.ReleaseWeekday = 0
	if err := repo.Insert(ctx, stored); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Stale copy read before the user edits below
	stale, _ := repo.GetByID(ctx, 7)

	if err := repo.SetFavorite(ctx, 7, true, 100); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	if err := repo.SetUnwatchedCount(ctx, 7, 5); err != nil {
		t.Fatalf("SetUnwatchedCount: %v", err)
	}
	if err := repo.SetRatingUser(ctx, 7, models.Ptr(9), 101); err != nil {
		t.Fatalf("SetRatingUser: %v", err)
	}

	stale.Title = "New Title"
	stale.Network = "HBO"
	stale.ReleaseWeekday = 3
	stale.LastUpdatedMs = 5_000
	if err := repo.UpdateProviderFields(ctx, stale); err != nil {
		t.Fatalf("UpdateProviderFields: %v", err)
	}

	got, _ := repo.GetByID(ctx, 7)
	if got.Title != "New Title" || got.Network != "HBO" || got.LastUpdatedMs != 5_000 {
		t.Errorf("provider columns not written: %+v", *got)
	}
	if !got.Favorite || got.UnwatchedCount != 5 || got.RatingUser == nil || *got.RatingUser != 9 || got.LastEditedSec != 101 {
		t.Errorf("user columns overwritten: %+v", *got)
	}
	if got.ReleaseWeekday != 0 {
		t.Errorf("daily weekday replaced by %d", got.ReleaseWeekday)
	}
}

// fullyPopulatedShow sets every attribute to a value other than its default.
func fullyPopulatedShow() *models.Show {
	return &models.Show{
		ID:                   4242,
		Title:                "The Expanse",
		TitleNoArticle:       models.Ptr("Expanse"),
		Overview:             "Humanity has colonized the solar system.",
		ActorsLegacy:         "|Steven Strait|Dominique Tipper|",
		ReleaseTime:          2100,
		ReleaseWeekday:       3,
		ReleaseCountry:       models.Ptr("US"),
		ReleaseTimeZone:      models.Ptr("America/New_York"),
		FirstRelease:         models.Ptr("2015-11-23"),
		Genres:               "Drama|Sci-Fi & Fantasy",
		Network:              "Prime Video",
		RatingGlobal:         models.Ptr(8.3),
		RatingVotes:          models.Ptr(4100),
		RatingUser:           models.Ptr(10),
		Runtime:              "43",
		Status:               "ended",
		ContentRating:        "TV-14",
		NextEpisode:          "1990145",
		Poster:               "/expanse.jpg",
		NextAirdateMs:        models.Ptr(int64(1_639_728_000_000)),
		NextText:             "S06E01 - Strange Dogs",
		NextAirdateText:      "Fri, Dec 10 2021",
		IMDBID:               "tt3230854",
		TraktID:              77199,
		Favorite:             true,
		HexagonMergeComplete: false,
		Hidden:               true,
		LastUpdatedMs:        1_700_000_000_123,
		LastEditedSec:        1_700_000_001,
		LastWatchedEpisodeID: 1990144,
		LastWatchedMs:        1_700_000_002_456,
		Language:             "en-US",
		UnwatchedCount:       12,
		Notify:               false,
	}
}

func TestFullyPopulatedShowRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))
	original := fullyPopulatedShow()

	// Every field must differ from its default, or the round trip proves nothing for it
	got, defaults := reflect.ValueOf(*original), reflect.ValueOf(*models.NewShow(0, ""))
	for i := 0; i < got.NumField(); i++ {
		if reflect.DeepEqual(got.Field(i).Interface(), defaults.Field(i).Interface()) {
			t.Fatalf("field %s is left at its default", got.Type().Field(i).Name)
		}
	}

	if err := repo.Insert(ctx, original); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	retrieved, err := repo.GetByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !reflect.DeepEqual(retrieved, original) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", *retrieved, *original)
	}

	listed, err := repo.List(ctx, ListFilter{IncludeHidden: true})
	if err != nil || len(listed) != 1 || !reflect.DeepEqual(&listed[0], original) {
		t.Errorf("List mismatch: %v %+v", err, listed)
	}
}

// Persisting any show and reading it back yields an equal record.
func TestShowPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewShowRepository(newTestDB(t))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("show persistence round-trip preserves every attribute", prop.ForAll(
		func(id int, title string, country *string, rating *float64, votes *int, nextMs *int64,
			releaseTime int, weekday int, genres string, favorite bool, hidden bool, notify bool,
			unwatched int, lastUpdated int64) bool {
			original := models.NewShow(id, title)
			original.TitleNoArticle = models.Ptr(models.TrimLeadingArticle(title))
			original.ReleaseCountry = country
			original.RatingGlobal = rating
			original.RatingVotes = votes
			original.NextAirdateMs = nextMs
			original.ReleaseTime = releaseTime
			original.ReleaseWeekday = weekday
			original.Genres = genres
			original.Favorite = favorite
			original.Hidden = hidden
			original.Notify = notify
			original.UnwatchedCount = unwatched
			original.LastUpdatedMs = lastUpdated

			if err := repo.Upsert(ctx, original); err != nil {
				t.Logf("Failed to upsert show: %v", err)
				return false
			}

			retrieved, err := repo.GetByID(ctx, id)
			if err != nil {
				t.Logf("Failed to retrieve show: %v", err)
				return false
			}
			return reflect.DeepEqual(retrieved, original)
		},
		gen.IntRange(1, 1000000),
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.PtrOf(gen.OneConstOf("US", "GB", "JP", "DE")),
		gen.PtrOf(gen.Float64Range(0, 10)),
		gen.PtrOf(gen.IntRange(0, 100000)),
		gen.PtrOf(gen.Int64Range(0, 4102444800000)),
		gen.IntRange(-1, 2359),
		gen.IntRange(-1, 7),
		gen.OneConstOf("", "Drama", "Drama|Crime", "Comedy|Animation"),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(-1, 500),
		gen.Int64Range(0, 4102444800000),
	))

	properties.TestingRun(t)
}
