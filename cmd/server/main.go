package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v81"

	"github.com/linkcard/linkcard-backend/internal/config"
	"github.com/linkcard/linkcard-backend/internal/database"
	"github.com/linkcard/linkcard-backend/internal/handlers"
	"github.com/linkcard/linkcard-backend/internal/middleware"
	"github.com/linkcard/linkcard-backend/internal/routes"
	"github.com/linkcard/linkcard-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	// Ensure MongoDB indexes for the room feed
	if err := services.EnsureFeedIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure feed indexes: %v", err)
	}

	// Payment gateway
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
		log.Println("✅ Stripe configured")
	} else {
		log.Println("⚠️  WARNING: STRIPE_SECRET_KEY not set. Credit top-ups will not be available")
	}

	// Media storage
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		media, err := services.NewMediaStorage(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Media uploads will not be available")
		} else {
			handlers.Media = media
			log.Println("✅ Cloudinary media storage initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Media uploads will not be available")
	}

	// Purchase transactor and realtime fan-out
	handlers.Transactor = services.NewTransactor(services.PgPurchaseStore{})
	handlers.FeedHub = services.NewFeedHub()
	handlers.FeedHub.Start(context.Background())
	defer handlers.FeedHub.Stop()

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: full security chain. Non-production: Redis-based purchase
	// limiting only (applied per-route).
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, host check, per-IP + login rate limiting)")
	}

	// Health check (no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Printf("🚀 LinkCard backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
