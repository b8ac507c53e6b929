package remote

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wmstack/blueprintgo/internal/models"
)

// GormService persists layout blocks in the database and pushes the
// authoritative block list to subscribers after every committed mutation.
type GormService struct {
	db *gorm.DB

	mu   sync.Mutex
	subs []chan []models.LayoutBlock
}

// NewGormService creates the database-backed persistence service.
func NewGormService(db *gorm.DB) *GormService {
	return &GormService{db: db}
}

// Create mints a remote id, stores the block, and broadcasts the new list.
func (s *GormService) Create(ctx context.Context, req CreateRequest) (string, error) {
	block := models.LayoutBlock{
		RemoteID:       uuid.NewString(),
		BlockType:      string(req.BlockType),
		ParentRemoteID: req.ParentRemoteID,
		Name:           req.Name,
		Path:           req.Path,
		Attributes:     datatypes.JSONMap(req.Attributes),
	}
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		return "", fmt.Errorf("failed to create layout block: %w", err)
	}
	s.broadcast(ctx)
	return block.RemoteID, nil
}

// Update replaces the attribute bag and name of an existing block. An
// update means the block is live on the client, so the deleted flag is
// cleared too; undoing a delete arrives here as a plain update.
func (s *GormService) Update(ctx context.Context, remoteID string, attrs map[string]interface{}, name string) error {
	res := s.db.WithContext(ctx).Model(&models.LayoutBlock{}).
		Where("remote_id = ?", remoteID).
		Updates(map[string]interface{}{
			"attributes": datatypes.JSONMap(attrs),
			"name":       name,
			"is_deleted": false,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update layout block %s: %w", remoteID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("layout block %s not found", remoteID)
	}
	s.broadcast(ctx)
	return nil
}

// SoftDelete flips the deleted flag; the row stays for audit and undo.
func (s *GormService) SoftDelete(ctx context.Context, remoteID string) error {
	res := s.db.WithContext(ctx).Model(&models.LayoutBlock{}).
		Where("remote_id = ?", remoteID).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("failed to delete layout block %s: %w", remoteID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("layout block %s not found", remoteID)
	}
	s.broadcast(ctx)
	return nil
}

// List returns every block, deleted ones included; the flag travels with
// the row so clients can mirror soft deletes.
func (s *GormService) List(ctx context.Context) ([]models.LayoutBlock, error) {
	var blocks []models.LayoutBlock
	if err := s.db.WithContext(ctx).Order("id").Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list layout blocks: %w", err)
	}
	return blocks, nil
}

// Subscribe registers a feed consumer. The channel is buffered; a consumer
// that stops draining misses pushes rather than blocking mutations.
func (s *GormService) Subscribe() <-chan []models.LayoutBlock {
	ch := make(chan []models.LayoutBlock, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *GormService) broadcast(ctx context.Context) {
	blocks, err := s.List(ctx)
	if err != nil {
		log.Printf("🔴 Feed broadcast skipped: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- blocks:
		default:
		}
	}
}
