package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"uistudio/internal/app"
	"uistudio/internal/model"
	"uistudio/internal/transport/http/middleware"
	"uistudio/internal/transport/http/response"
)

type SessionHandler struct {
	sessionService *app.SessionService
}

type CreateSessionRequest struct {
	Name string `json:"name"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
}

func NewSessionHandler(sessionService *app.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	session, err := h.sessionService.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(c, err, "get session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), app.CreateSessionInput{
		UserID: userID,
		Name:   req.Name,
	})
	if err != nil {
		writeServiceError(c, err, "create session failed")
		return
	}
	response.Created(c, session)
}

// Update accepts only the allow-listed fields; anything else in the body is
// dropped by decoding into SessionPatch.
func (h *SessionHandler) Update(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	var patch model.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.sessionService.UpdateSession(c.Request.Context(), app.UpdateSessionInput{
		UserID:    userID,
		SessionID: sessionID,
		Patch:     patch,
	})
	if err != nil {
		writeServiceError(c, err, "update session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	if err := h.sessionService.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		writeServiceError(c, err, "delete session failed")
		return
	}
	response.OK(c, gin.H{"id": sessionID})
}

func (h *SessionHandler) AddMessage(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.sessionService.AddChatMessage(c.Request.Context(), userID, sessionID, req.Message)
	if err != nil {
		writeServiceError(c, err, "add chat message failed")
		return
	}
	response.OK(c, session)
}

func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	return userID, true
}

func sessionParams(c *gin.Context) (uint, uint, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return 0, 0, false
	}
	raw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || raw == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return 0, 0, false
	}
	return userID, uint(raw), true
}

func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrPromptEmpty):
		response.Error(c, http.StatusBadRequest, response.CodePromptEmpty, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrGeneration):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeGenerationFailed, "generate component failed")
	case errors.Is(err, app.ErrRecordEnqueue):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeRecordEnqueue, "record exchange failed")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
