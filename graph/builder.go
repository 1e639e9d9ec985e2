package graph

import (
	"go.uber.org/zap"
)

// Builder renders sync graph snapshots into the visualization model.
type Builder struct {
	logger *zap.SugaredLogger
}

// NewBuilder creates a graph builder.
func NewBuilder(logger *zap.SugaredLogger) *Builder {
	return &Builder{
		logger: logger.Named("graph.builder"),
	}
}
