package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/urlutil"
)

// websiteRequest is the JSON body for create and update calls. Pointer
// fields distinguish "not sent" from a zero value so updates stay
// partial.
type websiteRequest struct {
	Name                *string                `json:"name"`
	RootURL             *string                `json:"root_url"`
	Active              *bool                  `json:"active"`
	IntervalMinutes     *int                   `json:"interval_minutes"`
	AutoCrawl           *bool                  `json:"auto_crawl"`
	AutoVisual          *bool                  `json:"auto_visual"`
	AutoBlur            *bool                  `json:"auto_blur"`
	AutoPerformance     *bool                  `json:"auto_performance"`
	AutoFull            *bool                  `json:"auto_full"`
	MaxCrawlDepth       *int                   `json:"max_crawl_depth"`
	VisualDiffThreshold *float64               `json:"visual_diff_threshold"`
	ExcludeKeywords     *[]string              `json:"exclude_keywords"`
	IgnoreRegions       *[]domain.IgnoreRegion `json:"ignore_regions"`
}

func (req *websiteRequest) apply(site *domain.Website) {
	if req.Name != nil {
		site.Name = *req.Name
	}
	if req.RootURL != nil {
		site.RootURL = *req.RootURL
	}
	if req.Active != nil {
		site.Active = *req.Active
	}
	if req.IntervalMinutes != nil {
		site.IntervalMinutes = *req.IntervalMinutes
	}
	if req.AutoCrawl != nil {
		site.AutoCrawl = *req.AutoCrawl
	}
	if req.AutoVisual != nil {
		site.AutoVisual = *req.AutoVisual
	}
	if req.AutoBlur != nil {
		site.AutoBlur = *req.AutoBlur
	}
	if req.AutoPerformance != nil {
		site.AutoPerformance = *req.AutoPerformance
	}
	if req.AutoFull != nil {
		site.AutoFull = *req.AutoFull
	}
	if req.MaxCrawlDepth != nil {
		site.MaxCrawlDepth = *req.MaxCrawlDepth
	}
	if req.VisualDiffThreshold != nil {
		site.VisualDiffThreshold = *req.VisualDiffThreshold
	}
	if req.ExcludeKeywords != nil {
		site.ExcludeKeywords = *req.ExcludeKeywords
	}
	if req.IgnoreRegions != nil {
		site.IgnoreRegions = *req.IgnoreRegions
	}
}

func (s *Server) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req websiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := time.Now().UTC()
	site := &domain.Website{
		ID:              uuid.NewString(),
		Active:          true,
		IntervalMinutes: s.config.DefaultIntervalMinutes,
		AutoCrawl:       true,
		AutoVisual:      true,
		MaxCrawlDepth:   s.config.CrawlMaxDepth,
		Baselines:       make(map[string]domain.BaselineEntry),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	req.apply(site)

	if site.RootURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "root_url is required")
		return
	}
	rootURL, err := urlutil.Normalize(site.RootURL)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "root_url is not a valid absolute URL")
		return
	}
	site.RootURL = rootURL
	if site.Name == "" {
		site.Name = rootURL
	}

	if err := s.pgStore.CreateWebsite(r.Context(), site); err != nil {
		s.logger.Error("creating website failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not create website")
		return
	}

	s.reschedule(r.Context())
	s.respondWithJSON(w, http.StatusCreated, site)
}

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	sites, err := s.pgStore.ListWebsites(r.Context(), activeOnly)
	if err != nil {
		s.logger.Error("listing websites failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list websites")
		return
	}
	if sites == nil {
		sites = []domain.Website{}
	}
	s.respondWithJSON(w, http.StatusOK, sites)
}

func (s *Server) handleGetWebsite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}
	s.respondWithJSON(w, http.StatusOK, site)
}

func (s *Server) handleUpdateWebsite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}

	var req websiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.apply(site)

	rootURL, err := urlutil.Normalize(site.RootURL)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "root_url is not a valid absolute URL")
		return
	}
	site.RootURL = rootURL
	site.UpdatedAt = time.Now().UTC()

	if err := s.pgStore.UpdateWebsite(r.Context(), site); err != nil {
		if errors.Is(err, domain.ErrWebsiteNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Website not found")
			return
		}
		s.logger.Error("updating website failed", zap.String("website_id", site.ID), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not update website")
		return
	}

	s.reschedule(r.Context())
	s.respondWithJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteWebsite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	if err := s.pgStore.DeleteWebsite(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrWebsiteNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Website not found")
			return
		}
		s.logger.Error("deleting website failed", zap.String("website_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not delete website")
		return
	}

	s.reschedule(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleTriggerCheck queues a manual check. The check runs through the
// same single-flight slot as scheduled ones, so 202 means accepted, not
// started.
func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}

	var req struct {
		CheckType string `json:"check_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	checkType := domain.CheckTypeFull
	if req.CheckType != "" {
		checkType = domain.CheckType(req.CheckType)
		if !validCheckType(checkType) {
			s.respondWithError(w, http.StatusBadRequest, "Unknown check_type: "+req.CheckType)
			return
		}
	}

	if err := s.scheduler.TriggerNow(site, checkType); err != nil {
		s.logger.Error("triggering check failed", zap.String("website_id", site.ID), zap.Error(err))
		s.respondWithError(w, http.StatusServiceUnavailable, "Scheduler is not accepting checks")
		return
	}

	s.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"message":    "Check queued",
		"website_id": site.ID,
		"check_type": string(checkType),
	})
}

func (s *Server) handleLatestCheck(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}

	records, err := s.pgStore.ListChecks(r.Context(), site.ID, 1)
	if err != nil {
		s.logger.Error("loading latest check failed", zap.String("website_id", site.ID), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not load latest check")
		return
	}
	if len(records) == 0 {
		s.respondWithError(w, http.StatusNotFound, "No checks recorded yet")
		return
	}
	s.respondWithJSON(w, http.StatusOK, records[0])
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.pgStore.ListChecks(r.Context(), site.ID, limit)
	if err != nil {
		s.logger.Error("listing history failed", zap.String("website_id", site.ID), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list check history")
		return
	}
	if records == nil {
		records = []domain.CheckRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pgStore.Stats(r.Context())
	if err != nil {
		s.logger.Error("collecting stats failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not collect stats")
		return
	}
	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		health["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		health["postgres"] = "healthy"
	}

	if err := s.redisStore.Ping(ctx); err != nil {
		health["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		health["redis"] = "healthy"
	}

	if health["postgres"] != "healthy" || health["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	s.respondWithJSON(w, http.StatusOK, health)
}

// loadWebsite resolves the website named in the URL or writes the error
// response itself.
func (s *Server) loadWebsite(w http.ResponseWriter, r *http.Request) (*domain.Website, bool) {
	id := chi.URLParam(r, "websiteID")
	site, err := s.pgStore.GetWebsite(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrWebsiteNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Website not found")
			return nil, false
		}
		s.logger.Error("loading website failed", zap.String("website_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not load website")
		return nil, false
	}
	return site, true
}

// reschedule rebuilds the scheduler's job table after a website change.
// The write that triggered it has already been committed, so a failure
// here is logged rather than turned into a client error.
func (s *Server) reschedule(ctx context.Context) {
	if err := s.scheduler.Reschedule(ctx); err != nil {
		s.logger.Error("reschedule after website change failed", zap.Error(err))
	}
}

func validCheckType(t domain.CheckType) bool {
	switch t {
	case domain.CheckTypeCrawl, domain.CheckTypeVisual, domain.CheckTypeBlur,
		domain.CheckTypePerformance, domain.CheckTypeFull, domain.CheckTypeBaseline:
		return true
	}
	return false
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
