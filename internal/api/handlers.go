// Package api exposes HTTP handlers for the carbon tracker.
package api

import (
	"net/http"
	"time"

	"example.com/carbontracker/internal/auth"
	"example.com/carbontracker/internal/domain"
	"example.com/carbontracker/internal/persistence"
)

// leaderboardMaxAge is how long edges may cache the leaderboard before the
// consumer-driven purge or expiry refreshes it.
const leaderboardMaxAge = "public, max-age=30"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /v1/carbon/footprint", h.footprint)
	mux.HandleFunc("GET /v1/carbon/activities", h.listActivities)
	mux.HandleFunc("POST /v1/carbon/activities", h.logActivity)
	mux.HandleFunc("GET /v1/carbon/breakdown", h.breakdown)
	mux.HandleFunc("GET /v1/carbon/recommendations", h.recommendations)
	mux.HandleFunc("POST /v1/carbon/recommendations/{id}/complete", h.completeRecommendation)

	mux.HandleFunc("GET /v1/challenges", h.listChallenges)
	mux.HandleFunc("GET /v1/challenges/my", h.myChallenges)
	mux.HandleFunc("GET /v1/challenges/{id}", h.getChallenge)
	mux.HandleFunc("POST /v1/challenges/{id}/join", h.joinChallenge)
	mux.HandleFunc("PUT /v1/challenges/{id}/progress", h.updateProgress)
	mux.HandleFunc("POST /v1/challenges/{id}/complete", h.completeChallenge)

	mux.HandleFunc("GET /v1/community/posts", h.listPosts)
	mux.HandleFunc("POST /v1/community/posts", h.createPost)
	mux.HandleFunc("POST /v1/community/posts/{id}/like", h.likePost)
	mux.HandleFunc("GET /v1/community/stats", h.communityStats)
	mux.HandleFunc("GET /v1/community/leaderboard", h.leaderboard)

	mux.HandleFunc("GET /v1/users/profile", h.getProfile)
	mux.HandleFunc("PUT /v1/users/profile", h.updateProfile)
	mux.HandleFunc("GET /v1/users/stats", h.userStats)
	mux.HandleFunc("POST /v1/users/{id}/points", h.addPoints)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) footprint(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	summary, err := h.service.GetFootprintData(r.Context(), claims.Subject, r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FootprintResponse{
		FootprintSummary: summary,
		Equivalency:      domain.Equivalencies(summary.TotalKg),
	})
}

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	var req LogActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := h.service.LogActivity(r.Context(), domain.LogActivityInput{
		UserID:     claims.Subject,
		Category:   req.category(),
		Quantity:   req.Quantity,
		Details:    req.Details,
		OccurredAt: req.occurredAt(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ActivityResponse{
		ActivityRecord: *record,
		Equivalency:    domain.Equivalencies(record.CarbonImpactKg),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListActivities(r.Context(), claims.Subject, cursor, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      records,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	breakdown, err := h.service.GetBreakdown(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if breakdown == nil {
		breakdown = []domain.CategoryBreakdown{}
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	recs, err := h.service.GetRecommendations(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) completeRecommendation(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	rec, err := h.service.CompleteRecommendation(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (r LogActivityRequest) category() string {
	if r.Category != "" {
		return r.Category
	}
	return r.Type
}

func (r LogActivityRequest) occurredAt() time.Time {
	if r.OccurredAt == nil {
		return time.Time{}
	}
	return *r.OccurredAt
}
