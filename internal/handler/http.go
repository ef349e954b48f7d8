package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"showshelf/internal/models"
	"showshelf/internal/repository"
	"showshelf/internal/service"
	"showshelf/internal/tmdb"
)

// ShowSearcher finds candidate shows on TMDB.
type ShowSearcher interface {
	SearchTV(ctx context.Context, query string) ([]tmdb.SearchResult, error)
}

// HTTPHandler handles HTTP requests for the JSON API
type HTTPHandler struct {
	shows     *service.ShowService
	searcher  ShowSearcher
	backupSvc *service.BackupService
	apiToken  string
	validate  *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler
func NewHTTPHandler(
	shows *service.ShowService,
	searcher ShowSearcher,
	backupSvc *service.BackupService,
	apiToken string,
) *HTTPHandler {
	return &HTTPHandler{
		shows:     shows,
		searcher:  searcher,
		backupSvc: backupSvc,
		apiToken:  strings.TrimSpace(apiToken),
		validate:  validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.Use(h.authMiddleware)

	// Probes stay unauthenticated
	r.GET("/api/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.GET("/schema", h.GetSchema)

	api.GET("/search", h.SearchTV)

	// Shows
	api.GET("/shows", h.ListShows)
	api.POST("/shows", h.CreateShow)
	api.POST("/shows/add", h.AddShow)
	api.GET("/shows/:id", h.GetShow)
	api.PUT("/shows/:id", h.SaveShow)
	api.DELETE("/shows/:id", h.RemoveShow)
	api.POST("/shows/:id/refresh", h.RefreshShow)

	// User attributes
	api.PUT("/shows/:id/favorite", h.toggle(h.shows.SetFavorite))
	api.PUT("/shows/:id/hidden", h.toggle(h.shows.SetHidden))
	api.PUT("/shows/:id/notify", h.toggle(h.shows.SetNotify))
	api.PUT("/shows/:id/rating", h.RateShow)
	api.PUT("/shows/:id/unwatched-count", h.SetUnwatchedCount)
	api.POST("/shows/:id/watched", h.MarkWatched)

	// Backups
	api.POST("/backup", func(c *gin.Context) {
		backupPath, err := h.backupSvc.Backup(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"backup_path": backupPath})
	})
	api.GET("/backup", func(c *gin.Context) {
		last, err := h.backupSvc.LastBackupTime()
		if err != nil {
			h.fail(c, err)
			return
		}
		resp := gin.H{"last_backup": nil}
		if !last.IsZero() {
			resp["last_backup"] = last
		}
		c.JSON(http.StatusOK, resp)
	})
}

// schemaColumn is the JSON form of a storage column.
type schemaColumn struct {
	Attribute  string `json:"attribute"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	NotNull    bool   `json:"not_null,omitempty"`
	Provider   bool   `json:"provider,omitempty"`
}

// GetSchema returns the series table layout
func (h *HTTPHandler) GetSchema(c *gin.Context) {
	columns := make([]schemaColumn, len(models.Columns))
	for i, col := range models.Columns {
		columns[i] = schemaColumn{
			Attribute:  col.Attribute,
			Name:       col.Name,
			Type:       string(col.Type),
			Default:    col.Default,
			PrimaryKey: col.PrimaryKey,
			NotNull:    col.NotNull,
			Provider:   col.Provider,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"table":   models.ShowTable,
		"columns": columns,
		"ddl":     repository.CreateTableSQL(),
	})
}

// SearchTV searches for TV shows
func (h *HTTPHandler) SearchTV(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	results, err := h.searcher.SearchTV(c.Request.Context(), query)
	if err != nil {
		h.fail(c, err)
		return
	}
	if results == nil {
		results = []tmdb.SearchResult{}
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ListShows returns stored shows. Hidden shows are included with
// ?hidden=true, ?favorites=true restricts to favorites.
func (h *HTTPHandler) ListShows(c *gin.Context) {
	filter := repository.ListFilter{
		IncludeHidden: queryBool(c, "hidden"),
		FavoritesOnly: queryBool(c, "favorites"),
	}
	shows, err := h.shows.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shows": shows})
}

// GetShow returns one show
func (h *HTTPHandler) GetShow(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	show, err := h.shows.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"show": show})
}

// CreateShow stores a new record built by the caller
func (h *HTTPHandler) CreateShow(c *gin.Context) {
	show, ok := h.bindShow(c)
	if !ok {
		return
	}
	if err := h.shows.Create(c.Request.Context(), show); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"show": show})
}

// SaveShow stores the full record under the path id, replacing any
// existing one. Omitted attributes take their defaults.
func (h *HTTPHandler) SaveShow(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	show, ok := h.bindShow(c)
	if !ok {
		return
	}
	if show.ID == 0 {
		show.ID = id
	}
	if show.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body id does not match path id"})
		return
	}
	if err := h.shows.Save(c.Request.Context(), show); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"show": show})
}

// AddShow starts tracking a show fetched from TMDB
func (h *HTTPHandler) AddShow(c *gin.Context) {
	var req struct {
		TMDBID int `json:"tmdb_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	show, err := h.shows.Add(c.Request.Context(), req.TMDBID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"show": show})
}

// RemoveShow stops tracking a show
func (h *HTTPHandler) RemoveShow(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	if err := h.shows.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// RefreshShow re-fetches a show from TMDB
func (h *HTTPHandler) RefreshShow(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	show, err := h.shows.Refresh(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"show": show})
}

// toggle adapts a boolean user attribute setter into a handler
func (h *HTTPHandler) toggle(set func(ctx context.Context, id int, value bool) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.showID(c)
		if !ok {
			return
		}
		var req struct {
			Value *bool `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := set(c.Request.Context(), id, *req.Value); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "updated"})
	}
}

// RateShow sets or clears the user rating
func (h *HTTPHandler) RateShow(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	var req struct {
		Rating *int `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.shows.Rate(c.Request.Context(), id, req.Rating); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// SetUnwatchedCount stores the unwatched episode count
func (h *HTTPHandler) SetUnwatchedCount(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	var req struct {
		Count *int `json:"count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.shows.SetUnwatchedCount(c.Request.Context(), id, *req.Count); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// MarkWatched records the last watched episode
func (h *HTTPHandler) MarkWatched(c *gin.Context) {
	id, ok := h.showID(c)
	if !ok {
		return
	}
	var req struct {
		EpisodeID int `json:"episode_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.shows.MarkWatched(c.Request.Context(), id, req.EpisodeID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// Health returns health status
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authMiddleware enforces Bearer token authentication against the configured API token.
func (h *HTTPHandler) authMiddleware(c *gin.Context) {
	if h.apiToken == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api token not set"})
		return
	}

	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.apiToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Next()
}

// Helper functions

// bindShow decodes and validates a show body, writing the error response
// itself when it returns false.
func (h *HTTPHandler) bindShow(c *gin.Context) (*models.Show, bool) {
	var show models.Show
	if err := c.ShouldBindJSON(&show); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if err := h.validate.Struct(&show); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return nil, false
	}
	return &show, true
}

func (h *HTTPHandler) showID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid show id"})
		return 0, false
	}
	return id, true
}

// fail maps service and repository errors onto HTTP statuses
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var apiErr *tmdb.APIError
	switch {
	case errors.Is(err, repository.ErrShowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrShowExists):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrTitleRequired):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidUnwatchedCount):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.NotFound():
		status = http.StatusNotFound
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
