package remote

import (
	"context"

	"github.com/wmstack/blueprintgo/internal/models"
)

// CreateRequest carries everything the remote side needs to mint a new
// layout block. Geometry travels inside the attribute bag (see
// models.EncodeGeometry).
type CreateRequest struct {
	BlockType      models.BlockType
	ParentRemoteID string
	Path           string
	Name           string
	Attributes     map[string]interface{}
}

// Service is the remote persistence collaborator. Create returns the
// durable remote id; the authoritative entity list is pushed back through
// Subscribe after every committed mutation, and the working copy reconciles
// against it. Update asserts the block is live: it clears any soft-delete
// flag along with writing attributes and name.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (string, error)
	Update(ctx context.Context, remoteID string, attrs map[string]interface{}, name string) error
	SoftDelete(ctx context.Context, remoteID string) error
	List(ctx context.Context) ([]models.LayoutBlock, error)
	Subscribe() <-chan []models.LayoutBlock
}
