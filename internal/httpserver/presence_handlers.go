package httpserver

import (
	"log/slog"
	"net/http"

	"travelmate/internal/service"
)

type onlineResponse struct {
	Online []string `json:"online"`
}

// @Summary      Online contacts
// @Description  IDs of the caller's contacts and conversation counterparts that are online right now.
// @Tags         presence
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  onlineResponse
// @Router       /presence/online [get]
func handleOnlineContacts(presenceSvc *service.PresenceService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		online, err := presenceSvc.OnlineContacts(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, onlineResponse{Online: online})
	}
}
