package api

import (
	"net/http"

	"example.com/carbontracker/internal/auth"
	"example.com/carbontracker/internal/domain"
)

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite, auth.ScopeCommunityWrite); !ok {
		return
	}

	page, err := h.service.ListPosts(r.Context(), domain.PageRequest{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 0),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeCommunityWrite)
	if !ok {
		return
	}

	var req CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := h.service.CreatePost(r.Context(), domain.CreatePostInput{
		UserID:  claims.Subject,
		Content: req.Content,
		Type:    req.Type,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) likePost(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCommunityWrite); !ok {
		return
	}

	postID := r.PathValue("id")
	likes, err := h.service.LikePost(r.Context(), postID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{PostID: postID, Likes: likes})
}

func (h *Handler) communityStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite, auth.ScopeCommunityWrite); !ok {
		return
	}

	stats, err := h.service.GetCommunityStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeCarbonRead, auth.ScopeCarbonWrite, auth.ScopeCommunityWrite); !ok {
		return
	}

	entries, err := h.service.GetLeaderboard(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.RankEntry{}
	}
	w.Header().Set("Cache-Control", leaderboardMaxAge)
	writeJSON(w, http.StatusOK, entries)
}
