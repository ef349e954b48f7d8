package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"
	defaultTimeout  = 10 * time.Second
	requestsPerSec  = 10
)

// Client handles all interactions with the TMDB API
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// SearchResult represents a single TV show from search results
type SearchResult struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	PosterPath    string   `json:"poster_path"`
	FirstAirDate  string   `json:"first_air_date"`
	OriginCountry []string `json:"origin_country"`
}

// EpisodeInfo represents episode information from TMDB
type EpisodeInfo struct {
	ID            int    `json:"id"`
	AirDate       string `json:"air_date"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
}

// NamedEntity is a TMDB genre or network.
type NamedEntity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs carries identifiers of the show in other catalogues.
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
	TVDBID int    `json:"tvdb_id"`
}

// ContentRating is a per-country classification.
type ContentRating struct {
	Country string `json:"iso_3166_1"`
	Rating  string `json:"rating"`
}

// ContentRatings wraps the content_ratings append.
type ContentRatings struct {
	Results []ContentRating `json:"results"`
}

// TVDetails represents detailed TV show information
type TVDetails struct {
	ID               int            `json:"id"`
	Name             string         `json:"name"`
	Overview         string         `json:"overview"`
	Status           string         `json:"status"`
	PosterPath       string         `json:"poster_path"`
	OriginCountry    []string       `json:"origin_country"`
	OriginalLanguage string         `json:"original_language"`
	FirstAirDate     string         `json:"first_air_date"`
	EpisodeRunTime   []int          `json:"episode_run_time"`
	Genres           []NamedEntity  `json:"genres"`
	Networks         []NamedEntity  `json:"networks"`
	VoteAverage      float64        `json:"vote_average"`
	VoteCount        int            `json:"vote_count"`
	NumberOfSeasons  int            `json:"number_of_seasons"`
	NextEpisodeToAir *EpisodeInfo   `json:"next_episode_to_air"`
	LastEpisodeToAir *EpisodeInfo   `json:"last_episode_to_air"`
	ExternalIDs      ExternalIDs    `json:"external_ids"`
	ContentRatings   ContentRatings `json:"content_ratings"`
}

// searchResponse wraps the TMDB search API response
type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// APIError represents an error returned by the TMDB API
type APIError struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("TMDB API error (code %d): %s", e.StatusCode, e.StatusMessage)
}

// NotFound reports whether TMDB has no show for the requested id.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NewClient creates a new TMDB API client
func NewClient(apiKey string) *Client {
	return NewClientWithHTTP(apiKey, &http.Client{Timeout: defaultTimeout})
}

// NewClientWithHTTP creates a new TMDB API client with a custom HTTP client
func NewClientWithHTTP(apiKey string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

// SetBaseURL allows overriding the base URL (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetLanguage sets the ISO 639-1 language tag sent with every request.
func (c *Client) SetLanguage(language string) {
	if language != "" {
		c.language = language
	}
}

// Language returns the language tag sent with every request.
func (c *Client) Language() string {
	return c.language
}

// SearchTV searches for TV shows by query string
func (c *Client) SearchTV(ctx context.Context, query string) ([]SearchResult, error) {
	if query == "" {
		return []SearchResult{}, nil
	}

	params := url.Values{"query": {query}}
	var result searchResponse
	if err := c.get(ctx, "/search/tv", params, &result); err != nil {
		return nil, fmt.Errorf("failed to search TV shows: %w", err)
	}
	return result.Results, nil
}

// GetTVDetails fetches detailed information for a TV show, including
// external ids and content ratings.
func (c *Client) GetTVDetails(ctx context.Context, tmdbID int) (*TVDetails, error) {
	if tmdbID <= 0 {
		return nil, fmt.Errorf("invalid TMDB ID: %d", tmdbID)
	}

	params := url.Values{"append_to_response": {"external_ids,content_ratings"}}
	var details TVDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", tmdbID), params, &details); err != nil {
		return nil, fmt.Errorf("failed to get TV details: %w", err)
	}
	return &details, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError builds an APIError from a non-2xx response. The HTTP status
// wins over the code TMDB puts in the body.
func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload APIError
	switch {
	case json.Unmarshal(body, &payload) == nil && payload.StatusMessage != "":
		apiErr.StatusMessage = payload.StatusMessage
	case len(body) > 0:
		apiErr.StatusMessage = string(body)
	default:
		apiErr.StatusMessage = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
