package seeders

import (
	"context"
	"log"
	"strings"

	"gradebook_go/config"
	"gradebook_go/database"
	"gradebook_go/models"
	"gradebook_go/store"
	"gradebook_go/utils"
)

// DefaultCategories are created when the gradebook has no categories yet.
var DefaultCategories = []models.Category{
	{Name: "Tugas", Description: "Assignments"},
	{Name: "Ulangan Harian", Description: "Daily quizzes"},
	{Name: "UTS", Description: "Mid-term exam"},
	{Name: "UAS", Description: "Final exam"},
}

// SeedAll runs all seeders
func SeedAll(ctx context.Context, st *store.Store) {
	log.Println("Starting database seeding...")

	if database.DB != nil {
		SeedAdmin()
	}
	SeedCategories(ctx, st)

	log.Println("Database seeding completed successfully!")
}

// SeedAdmin creates the first admin profile when the profiles table is empty
func SeedAdmin() {
	var count int64
	database.DB.Model(&models.Profile{}).Count(&count)
	if count > 0 {
		log.Println("Profiles already seeded, skipping...")
		return
	}

	hashed, err := utils.HashPassword(config.AppConfig.AdminPassword)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}
	admin := models.Profile{
		ID:          utils.GenerateID(),
		Email:       strings.ToLower(strings.TrimSpace(config.AppConfig.AdminEmail)),
		Password:    hashed,
		Role:        models.RoleAdmin,
		DisplayName: "Administrator",
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Printf("Error seeding admin %s: %v", admin.Email, err)
		return
	}

	log.Printf("Admin profile %s seeded successfully", admin.Email)
}

// SeedCategories creates the default grading categories through the store
func SeedCategories(ctx context.Context, st *store.Store) {
	if len(st.Categories()) > 0 {
		log.Println("Categories already seeded, skipping...")
		return
	}

	for _, c := range DefaultCategories {
		if _, err := st.SaveCategory(ctx, c); err != nil {
			log.Printf("Error seeding category %s: %v", c.Name, err)
		}
	}

	log.Println("Categories seeded successfully")
}
