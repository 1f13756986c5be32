package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"uistudio/internal/app"
	"uistudio/internal/preview"
	"uistudio/internal/transport/http/response"
)

// PreviewHandler serves rendered preview documents and export bundles.
// Rendered documents are cached in-process keyed by session and update
// timestamps, so a new artifact never hits a stale entry.
type PreviewHandler struct {
	sessionService *app.SessionService
	renderer       *preview.Renderer
	rendered       *gocache.Cache
}

func NewPreviewHandler(sessionService *app.SessionService, renderer *preview.Renderer, ttl time.Duration) *PreviewHandler {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PreviewHandler{
		sessionService: sessionService,
		renderer:       renderer,
		rendered:       gocache.New(ttl, 2*ttl),
	}
}

func (h *PreviewHandler) Preview(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	session, err := h.sessionService.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(c, err, "load preview failed")
		return
	}

	code := session.GeneratedCode
	settings := session.UIState.PreviewSettings
	key := fmt.Sprintf("%d:%d:%d:%s:%t",
		session.ID, session.UpdatedAt.UnixNano(), code.LastUpdated.UnixNano(), settings.Theme, settings.Responsive)

	c.Header("Content-Security-Policy", preview.SandboxCSP)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "no-store")

	if cached, found := h.rendered.Get(key); found {
		c.Data(http.StatusOK, "text/html; charset=utf-8", cached.([]byte))
		return
	}

	doc, err := h.renderer.RenderWithSettings(code, settings)
	if errors.Is(err, preview.ErrNoArtifact) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(preview.Placeholder()))
		return
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "render preview failed")
		return
	}

	body := []byte(doc)
	h.rendered.SetDefault(key, body)
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// Export downloads the artifact. format=zip returns the archive; anything
// else returns the flat text bundle.
func (h *PreviewHandler) Export(c *gin.Context) {
	userID, sessionID, ok := sessionParams(c)
	if !ok {
		return
	}
	session, err := h.sessionService.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeServiceError(c, err, "export failed")
		return
	}

	var (
		body        []byte
		filename    string
		contentType string
	)
	if c.Query("format") == "zip" {
		body, err = preview.Archive(session.GeneratedCode)
		filename, contentType = preview.ArchiveFileName, "application/zip"
	} else {
		body, err = preview.Bundle(session.GeneratedCode)
		filename, contentType = preview.BundleFileName, "text/plain; charset=utf-8"
	}
	if errors.Is(err, preview.ErrNoArtifact) {
		response.Error(c, http.StatusNotFound, response.CodeNoArtifact, err.Error())
		return
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "export failed")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, body)
}
