package validate

import (
	"fmt"

	"github.com/wmstack/blueprintgo/internal/models"
)

// Validator checks an attribute bag against the schema for its block type.
// The real schema registry lives outside this subsystem; the pipeline only
// depends on this interface.
type Validator interface {
	Validate(blockType models.BlockType, attrs map[string]interface{}) error
}

// Default is a minimal schema: every block needs a non-empty name, racks
// carry a level count, and nothing may use reserved attribute keys.
type Default struct{}

// NewDefault returns the built-in validator.
func NewDefault() *Default { return &Default{} }

// Validate implements Validator.
func (Default) Validate(blockType models.BlockType, attrs map[string]interface{}) error {
	if !blockType.Valid() {
		return fmt.Errorf("unknown block type %q", blockType)
	}

	name, ok := attrs["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("%s requires a non-empty name attribute", blockType)
	}

	if blockType == models.BlockRack {
		if err := positiveNumber(attrs, "levels"); err != nil {
			return err
		}
	}

	if locked, present := attrs["locked"]; present {
		if _, ok := locked.(bool); !ok {
			return fmt.Errorf("locked attribute must be a boolean")
		}
	}
	return nil
}

func positiveNumber(attrs map[string]interface{}, key string) error {
	v, present := attrs[key]
	if !present {
		return fmt.Errorf("rack requires a %s attribute", key)
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return nil
		}
	case int:
		if n > 0 {
			return nil
		}
	}
	return fmt.Errorf("%s must be a positive number", key)
}
