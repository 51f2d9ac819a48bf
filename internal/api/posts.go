package api

import (
	"net/http"

	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/posts"
)

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", posts.DefaultPageSize)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_OFFSET", "offset must be a non-negative integer")
		return
	}
	if limit <= 0 {
		limit = posts.DefaultPageSize
	}
	limit = min(limit, posts.MaxPageSize)

	list, err := h.postSvc.List(r.Context(), viewer(r.Context()), limit, offset)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if list == nil {
		list = []entities.PostSummary{}
	}
	h.writeJSON(w, http.StatusOK, PostListDTO{Posts: list, Limit: limit, Offset: offset})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !h.decode(w, r, &req) {
		return
	}
	callerID, _ := CallerID(r.Context())

	post, err := h.postSvc.Create(r.Context(), callerID, req.Content)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.postSvc.Get(r.Context(), postID, viewer(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	callerID, _ := CallerID(r.Context())

	if err := h.postSvc.Delete(r.Context(), postID, callerID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCommentTree returns the post's comments as a forest of nested replies
func (h *Handler) GetCommentTree(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	tree, err := h.commentSvc.Tree(r.Context(), postID, viewer(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CommentTreeDTO{PostID: postID, Comments: tree})
}
