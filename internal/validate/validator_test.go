package validate

import (
	"testing"

	"github.com/wmstack/blueprintgo/internal/models"
)

func TestDefaultValidator(t *testing.T) {
	v := NewDefault()

	cases := []struct {
		name      string
		blockType models.BlockType
		attrs     map[string]interface{}
		wantErr   bool
	}{
		{"valid rack", models.BlockRack, map[string]interface{}{"name": "A-01", "levels": 3.0}, false},
		{"rack with int levels", models.BlockRack, map[string]interface{}{"name": "A-02", "levels": 4}, false},
		{"rack missing levels", models.BlockRack, map[string]interface{}{"name": "A-03"}, true},
		{"rack zero levels", models.BlockRack, map[string]interface{}{"name": "A-04", "levels": 0.0}, true},
		{"missing name", models.BlockZone, map[string]interface{}{}, true},
		{"empty name", models.BlockFloor, map[string]interface{}{"name": ""}, true},
		{"non-string name", models.BlockZone, map[string]interface{}{"name": 7}, true},
		{"valid zone", models.BlockZone, map[string]interface{}{"name": "Inbound"}, false},
		{"valid obstacle", models.BlockObstacle, map[string]interface{}{"name": "Pillar"}, false},
		{"unknown type", models.BlockType("conveyor"), map[string]interface{}{"name": "C1"}, true},
		{"locked bool ok", models.BlockRack, map[string]interface{}{"name": "A-05", "levels": 2.0, "locked": true}, false},
		{"locked non-bool", models.BlockRack, map[string]interface{}{"name": "A-06", "levels": 2.0, "locked": "yes"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.blockType, tc.attrs)
			if tc.wantErr && err == nil {
				t.Errorf("Validate(%s, %v) = nil, want error", tc.blockType, tc.attrs)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate(%s, %v) = %v, want nil", tc.blockType, tc.attrs, err)
			}
		})
	}
}
