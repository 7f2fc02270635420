package main

import (
	"log"

	_ "commissionledger/api/swagger" // swagger docs
	"commissionledger/internal/command"
	"commissionledger/internal/config"
	"commissionledger/internal/logger"
	"commissionledger/internal/middleware"

	"github.com/joho/godotenv"
)

// @title           Commission Ledger API
// @version         1.0
// @description     Records booking commissions, issues monthly commission invoices, reconciles direct debit payments and exports the journal to DATEV.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if cfg.JWTSecret != "" {
		middleware.SetJWTSecret(cfg.JWTSecret)
	}

	command.Execute(cfg)
}
