package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streetmaint/internal/importer"
	"streetmaint/internal/repository"
)

// ImporterHandler exposes per-importer run state and a manual trigger for
// operations use. A manual run follows the same path as a scheduled one,
// including import-state recording.
type ImporterHandler struct {
	Registry *importer.Registry
	Repo     repository.Repository
	Logger   *zap.Logger
}

func (h *ImporterHandler) Register(r *gin.Engine) {
	group := r.Group("/api/importers")
	group.GET("", h.listStates)
	group.POST("/:id/run", h.run)
}

func (h *ImporterHandler) listStates(c *gin.Context) {
	states, err := h.Repo.ListImportStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, "query failed", nil)
		return
	}
	Ok(c, states, nil)
}

func (h *ImporterHandler) run(c *gin.Context) {
	name := c.Param("id")
	imp := h.Registry.Get(name)
	if imp == nil {
		Error(c, http.StatusNotFound, "unknown importer", nil)
		return
	}

	ctx := c.Request.Context()
	stats, runErr := imp.Run(ctx)
	if err := importer.RecordRun(ctx, h.Repo, name, stats, runErr, time.Now()); err != nil {
		h.Logger.Warn("recording import state failed", zap.String("importer", name), zap.Error(err))
	}
	if runErr != nil {
		Error(c, http.StatusBadGateway, runErr.Error(), nil)
		return
	}
	Ok(c, stats, nil)
}
