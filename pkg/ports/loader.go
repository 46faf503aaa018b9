package ports

import (
	"context"

	"github.com/aretw0/chatflow/pkg/domain"
)

// FlowLoader retrieves flow documents.
// This allows the flow source (Loam, files, memory) to be decoupled from the editor.
type FlowLoader interface {
	// GetFlow returns the flow stored under id.
	// Returns domain.ErrFlowNotFound if it does not exist.
	GetFlow(ctx context.Context, id string) (domain.Flow, error)

	// ListFlows returns the ids of all available flows.
	ListFlows(ctx context.Context) ([]string, error)
}
