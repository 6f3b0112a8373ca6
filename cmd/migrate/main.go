package main

import (
	"log"

	"codeduel/internal/config"
	"codeduel/internal/database"
)

// migrate runs the GORM auto-migration for every model the server
// depends on, so schema changes can be applied ahead of a deploy
// without starting the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	log.Println("migrations applied successfully")
}
