// Package mesh implements the HTTP surface named in spec.md §6: a health
// check and the single pipeline-invocation endpoint.
package mesh

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"meshconsolidator/internal/core/domain/mesh"
)

// Processor runs one request through the consolidation pipeline. Satisfied
// by *meshsvc.PipelineOrchestrator; narrowed here so the handler doesn't
// depend on the service package's other internals.
type Processor interface {
	Process(ctx context.Context, req mesh.RequestPackage) (*mesh.ResponsePackage, error)
}

// Handler serves the mesh telemetry consolidator's HTTP surface.
type Handler struct {
	pipeline Processor
	logger   *logrus.Logger
}

func NewHandler(pipeline Processor, logger *logrus.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger}
}

// Check answers GET / with an empty 200 body (spec.md §6).
func (h *Handler) Check(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Collect answers POST / by running the request through the pipeline. Any
// pipeline error yields an empty 400 body and a log line (spec.md §6, §7);
// ConfigError never reaches here since it is only ever raised at startup.
func (h *Handler) Collect(c *gin.Context) {
	var req mesh.RequestPackage
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).
			Warn("rejecting malformed request body")
		c.Status(http.StatusBadRequest)
		return
	}

	resp, err := h.pipeline.Process(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", c.GetString("request_id")).
			Error("pipeline request failed")
		c.Status(http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, resp)
}
