package api

import (
	"net/http"

	"github.com/leafsii/feed-backend/internal/likes"
)

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, likes.TargetPost, true)
}

func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, likes.TargetPost, false)
}

func (h *Handler) LikeComment(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, likes.TargetComment, true)
}

func (h *Handler) UnlikeComment(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, likes.TargetComment, false)
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, kind likes.Target, like bool) {
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	callerID, _ := CallerID(r.Context())

	var (
		res *likes.Result
		err error
	)
	if like {
		res, err = h.ledger.Like(r.Context(), kind, targetID, callerID)
	} else {
		res, err = h.ledger.Unlike(r.Context(), kind, targetID, callerID)
	}
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
