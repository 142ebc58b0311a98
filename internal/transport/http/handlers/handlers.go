package handlers

import (
	"github.com/sirupsen/logrus"

	meshHandler "meshconsolidator/internal/transport/http/handlers/mesh"
)

// Handlers aggregates the HTTP surface's single handler group.
type Handlers struct {
	Mesh *meshHandler.Handler
}

// NewHandlers constructs the handler aggregate.
func NewHandlers(pipeline meshHandler.Processor, logger *logrus.Logger) *Handlers {
	return &Handlers{
		Mesh: meshHandler.NewHandler(pipeline, logger),
	}
}
