package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/leafsii/feed-backend/internal/comments"
	"github.com/leafsii/feed-backend/internal/db/entities"
	"github.com/leafsii/feed-backend/internal/db/interfaces"
)

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Post <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_POST", "post is required")
		return
	}
	callerID, _ := CallerID(r.Context())

	comment, err := h.commentSvc.Create(r.Context(), comments.CreateInput{
		PostID:   req.Post,
		ParentID: req.Parent,
		AuthorID: callerID,
		Content:  req.Content,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	author := entities.Author{ID: callerID}
	if user, err := h.db.GetUser(r.Context(), callerID); err == nil {
		author.Username = user.Username
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		h.logger.Warnw("Failed to load comment author", "user_id", callerID, "error", err)
	}
	h.writeJSON(w, http.StatusCreated, newCommentDTO(comment, author))
}

// ListComments returns the post's comments flat, in thread order
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(r.URL.Query().Get("post"), 10, 64)
	if err != nil || postID <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_POST", "post query parameter is required")
		return
	}

	rows, err := h.commentSvc.List(r.Context(), postID, viewer(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	dto := CommentListDTO{PostID: postID, Comments: make([]CommentDTO, 0, len(rows))}
	for _, row := range rows {
		dto.Comments = append(dto.Comments, commentRowDTO(row))
	}
	h.writeJSON(w, http.StatusOK, dto)
}
