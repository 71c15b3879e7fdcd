package httpserver

import (
	"log/slog"
	"net/http"

	"travelmate/internal/service"
)

// @Summary      List conversations
// @Description  One entry per counterpart, most recent first, with unread count and online flag.
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.ConversationView
// @Failure      503  {object}  errorResponse
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := convSvc.GetConversationList(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}
