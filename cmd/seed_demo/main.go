package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/wmstack/blueprintgo/internal/config"
	"github.com/wmstack/blueprintgo/internal/database"
	"github.com/wmstack/blueprintgo/internal/models"
	"gorm.io/datatypes"
)

func main() {
	fmt.Println("🌱 Blueprint Demo Layout Seeder")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	fmt.Println("🔨 Running database migrations...")
	if err := db.AutoMigrate(&models.LayoutBlock{}); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")

	var blockCount int64
	db.Model(&models.LayoutBlock{}).Count(&blockCount)
	if blockCount > 0 {
		fmt.Printf("⚠️  Database already has %d layout blocks. Clear it first? (y/N): ", blockCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}
		fmt.Println("🗑️  Clearing existing layout...")
		db.Exec("TRUNCATE TABLE layout_blocks CASCADE")
		fmt.Println("✅ Layout cleared")
	}

	fmt.Println("📦 Creating demo layout...")

	floorID := uuid.NewString()
	floor := models.LayoutBlock{
		RemoteID:  floorID,
		BlockType: string(models.BlockFloor),
		Name:      "Main Hall",
		Path:      "main-hall",
		Attributes: encodeAttrs(models.Geometry{
			Position:   models.Vec3{},
			Dimensions: models.Dimensions{Width: 60, Height: 0.2, Depth: 40},
		}, map[string]interface{}{"name": "Main Hall"}),
	}
	if err := db.Create(&floor).Error; err != nil {
		log.Fatalf("❌ Failed to create floor: %v", err)
	}

	// Two aisles of racks, 2m deep, 3m apart.
	count := 0
	for aisle := 0; aisle < 2; aisle++ {
		for i := 0; i < 6; i++ {
			name := fmt.Sprintf("A%d-%02d", aisle+1, i+1)
			rack := models.LayoutBlock{
				RemoteID:       uuid.NewString(),
				BlockType:      string(models.BlockRack),
				ParentRemoteID: floorID,
				Name:           name,
				Path:           "main-hall." + name,
				Attributes: encodeAttrs(models.Geometry{
					Position: models.Vec3{
						X: -20 + float64(i)*6,
						Z: -10 + float64(aisle)*8,
					},
					Dimensions: models.Dimensions{Width: 4, Height: 6, Depth: 2},
				}, map[string]interface{}{"name": name, "levels": 4}),
			}
			if err := db.Create(&rack).Error; err != nil {
				log.Fatalf("❌ Failed to create rack %s: %v", name, err)
			}
			count++
		}
	}

	pillar := models.LayoutBlock{
		RemoteID:       uuid.NewString(),
		BlockType:      string(models.BlockObstacle),
		ParentRemoteID: floorID,
		Name:           "Pillar-1",
		Path:           "main-hall.Pillar-1",
		Attributes: encodeAttrs(models.Geometry{
			Position:   models.Vec3{X: 10, Z: 5},
			Dimensions: models.Dimensions{Width: 1, Height: 8, Depth: 1},
		}, map[string]interface{}{"name": "Pillar-1"}),
	}
	if err := db.Create(&pillar).Error; err != nil {
		log.Fatalf("❌ Failed to create pillar: %v", err)
	}

	fmt.Printf("✅ Seeded 1 floor, %d racks, 1 obstacle\n", count)
}

func encodeAttrs(geom models.Geometry, attrs map[string]interface{}) datatypes.JSONMap {
	return datatypes.JSONMap(models.EncodeGeometry(attrs, geom))
}
