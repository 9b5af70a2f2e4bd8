package api

import (
	"net/http"

	"example.com/carbontracker/internal/auth"
	"example.com/carbontracker/internal/domain"
)

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite); !ok {
		return
	}

	challenges, err := h.service.ListChallenges(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (h *Handler) getChallenge(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite); !ok {
		return
	}

	challenge, err := h.service.GetChallenge(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *Handler) myChallenges(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	participations, err := h.service.MyChallenges(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if participations == nil {
		participations = []domain.ChallengeParticipation{}
	}
	writeJSON(w, http.StatusOK, participations)
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	participation, err := h.service.JoinChallenge(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participation)
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	var req ProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Progress == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "progress is required")
		return
	}

	outcome, err := h.service.UpdateProgress(r.Context(), claims.Subject, r.PathValue("id"), *req.Progress)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) completeChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCarbonWrite)
	if !ok {
		return
	}

	outcome, err := h.service.CompleteChallenge(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
