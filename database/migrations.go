package database

import (
	"fmt"

	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.MenuItem{},
		&models.Order{},
		&models.OrderLine{},
		&models.OrderStatusLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

// defaultMenu is loaded into an empty catalog so a fresh install can take orders.
var defaultMenu = []models.MenuItem{
	{Name: "Clay Pot Veg Biryani", Category: "biryani", Price: 199, Veg: true, Description: "Slow-cooked basmati with seasonal vegetables, sealed in clay."},
	{Name: "Hyderabadi Chicken Biryani", Category: "biryani", Price: 279, Description: "Dum-cooked chicken biryani with mirchi ka salan."},
	{Name: "Paneer Butter Masala Thali", Category: "thali", Price: 249, Veg: true, Description: "Paneer butter masala, dal, jeera rice, two rotis and raita."},
	{Name: "Farmhouse Pizza", Category: "pizza", Price: 299, Veg: true, Description: "Capsicum, onion, tomato and mushroom on a hand-tossed base."},
	{Name: "Garlic Naan", Category: "breads", Price: 50, Veg: true, Description: "Tandoor-baked naan brushed with garlic butter."},
	{Name: "Mango Lassi", Category: "beverages", Price: 99, Veg: true, Description: "Alphonso mango blended with chilled curd."},
	{Name: "Gulab Jamun", Category: "desserts", Price: 89, Veg: true, Description: "Two warm gulab jamun in cardamom syrup."},
}

// SeedMenu inserts the default menu when the catalog is empty.
func SeedMenu(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if count > 0 {
		return nil
	}

	items := make([]models.MenuItem, len(defaultMenu))
	copy(items, defaultMenu)
	for i := range items {
		items[i].Available = true
	}
	if err := db.Create(&items).Error; err != nil {
		return fmt.Errorf("seed menu: %w", err)
	}
	utils.InfoLogger.Printf("Seeded %d menu items", len(items))
	return nil
}
