package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"travelmate/internal/domain"
	"travelmate/internal/service"
)

type sendMessageRequest struct {
	Body       string             `json:"body"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
	ClientID   string             `json:"client_id,omitempty"`
}

type markReadResponse struct {
	Updated int `json:"updated"`
}

// @Summary      List messages with a user
// @Description  Returns a page of the conversation, oldest first. cursor is the ID of the oldest message already loaded.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        otherUserID path string true "Counterpart user ID"
// @Param        cursor query string false "Message ID to page back from"
// @Param        limit query int false "Page size (max 200)"
// @Success      200  {array}   domain.Message
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /messages/{otherUserID} [get]
func handleListMessages(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageFromQuery(r)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		msgs, err := msgSvc.ListMessages(r.Context(), CurrentUserID(r), chi.URLParam(r, "otherUserID"), page)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Send a message
// @Description  Sends a direct message. Accepts JSON or multipart/form-data with fields body, client_id and one file part named "file".
// @Tags         messages
// @Accept       json
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        receiverID path string true "Receiver user ID"
// @Param        input body sendMessageRequest false "Message"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /send/{receiverID} [post]
func handleSendMessage(msgSvc *service.MessageService, files AttachmentStore, maxUploadBytes int64, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		var uploaded *domain.Attachment

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "multipart/form-data" {
			att, fields, err := readMultipartAttachment(w, r, files, maxUploadBytes, false)
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			req.Body = fields.Get("body")
			req.ClientID = fields.Get("client_id")
			req.Attachment = att
			uploaded = att
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		msg, err := msgSvc.Send(r.Context(), service.SendInput{
			SenderID:   CurrentUserID(r),
			ReceiverID: chi.URLParam(r, "receiverID"),
			Body:       req.Body,
			Attachment: req.Attachment,
			ClientID:   req.ClientID,
		})
		if uploaded != nil && (err != nil || msg.Attachment == nil || msg.Attachment.URL != uploaded.URL) {
			// Rejected sends and client_id duplicates leave the upload unreferenced.
			if rmErr := files.Remove(uploaded); rmErr != nil {
				log.Warn("failed to remove unused upload", "url", uploaded.URL, "error", rmErr)
			}
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// @Summary      Mark conversation read
// @Description  Marks every unread message from senderID to the caller as read.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        senderID path string true "Counterpart user ID"
// @Success      200  {object}  markReadResponse
// @Failure      400  {object}  errorResponse
// @Router       /read/{senderID} [put]
func handleMarkConversationRead(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := msgSvc.MarkConversationRead(r.Context(), CurrentUserID(r), chi.URLParam(r, "senderID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, markReadResponse{Updated: n})
	}
}

var errMissingFile = errors.New("missing file")
