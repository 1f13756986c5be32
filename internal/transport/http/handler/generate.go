package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"uistudio/internal/app"
	"uistudio/internal/transport/http/response"
)

type GenerationObserver interface {
	ObserveGeneration(outcome string)
}

type GenerateHandler struct {
	generationService *app.GenerationService
	observer          GenerationObserver
	timeout           time.Duration
}

type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	SessionID      uint   `json:"sessionId"`
	RecordExchange bool   `json:"recordExchange"`
}

func NewGenerateHandler(generationService *app.GenerationService, observer GenerationObserver, timeout time.Duration) *GenerateHandler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenerateHandler{
		generationService: generationService,
		observer:          observer,
		timeout:           timeout,
	}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.SessionID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "sessionId is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.generationService.Generate(ctx, app.GenerateInput{
		UserID:         userID,
		SessionID:      req.SessionID,
		Prompt:         req.Prompt,
		RecordExchange: req.RecordExchange,
	})
	if err != nil {
		h.observe("error")
		writeServiceError(c, err, "generate component failed")
		return
	}
	h.observe("success")
	response.OK(c, result)
}

func (h *GenerateHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveGeneration(outcome)
	}
}
