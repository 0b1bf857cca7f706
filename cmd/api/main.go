package main

import (
	"log"
	"os"
	"strconv"

	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/ai"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/credits"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/database"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/handlers"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/payments"
	"github.com/jesielandrade11/aira-resume-craft-sub000/internal/routes"
	"github.com/joho/godotenv"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("CRITICAL ERROR: JWT_SECRET environment variable is not set.")
	}

	// 1. --- Database Connection + Migrations ---
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied")

	// 2. --- AI Service Initialization ---
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("CRITICAL ERROR: GEMINI_API_KEY environment variable is not set.")
	}
	aiService, err := ai.NewAIService(geminiKey)
	if err != nil {
		log.Fatalf("Failed to initialize AI Service: %v", err)
	}

	// 3. --- Stripe Payments ---
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Fatal("CRITICAL ERROR: STRIPE_SECRET_KEY environment variable is not set.")
	}
	paymentService := payments.New(
		stripeKey,
		os.Getenv("STRIPE_WEBHOOK_SECRET"),
		getenvDefault("CHECKOUT_SUCCESS_URL", "http://localhost:5173/purchase/success"),
		getenvDefault("CHECKOUT_CANCEL_URL", "http://localhost:5173/pricing"),
	)

	// 4. --- Starting Balance for New Accounts ---
	startingCredits := 10.0
	if v := os.Getenv("STARTING_CREDITS"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("Invalid STARTING_CREDITS value %q: %v", v, err)
		}
		startingCredits = parsed
	}

	// --- Application Setup ---
	// We inject ALL dependencies into the Handlers struct.
	app := &handlers.Handlers{
		DB:              db,
		Ledger:          credits.NewLedger(db),
		AIService:       aiService,
		Payments:        paymentService,
		StartingCredits: startingCredits,
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app)

	// --- Start Server ---
	port := getenvDefault("PORT", "8080")
	log.Printf("Starting resume-craft API server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
