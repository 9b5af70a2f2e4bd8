package api

import (
	"net/http"

	"example.com/carbontracker/internal/auth"
)

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), claims.Subject, req.displayName())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	stats, err := h.service.GetUserStats(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// addPoints credits points to any user and is reserved for trusted callers.
func (h *Handler) addPoints(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopePointsWrite); !ok {
		return
	}

	var req AddPointsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Delta == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "delta is required")
		return
	}

	profile, err := h.service.AddPoints(r.Context(), r.PathValue("id"), *req.Delta, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (r UpdateProfileRequest) displayName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Name
}
