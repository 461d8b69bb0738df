package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/linkcard/linkcard-backend/internal/handlers"
	"github.com/linkcard/linkcard-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/signin", handlers.Signin)
	r.Post("/api/auth/guest", handlers.GuestSession)
	r.Post("/api/auth/signout", handlers.Signout)
	r.Get("/api/auth/me", handlers.Me)

	// Card routes (gallery CRUD + unlock)
	r.Post("/api/cards", handlers.CreateCard)
	r.Get("/api/cards", handlers.ListMyCards)
	r.Get("/api/cards/{cardID}", handlers.GetCard)
	r.Put("/api/cards/{cardID}", handlers.UpdateCard)
	r.Delete("/api/cards/{cardID}", handlers.DeleteCard)
	r.With(middleware.PurchaseRateLimit).Post("/api/cards/{cardID}/unlock", handlers.UnlockCard)

	// Room feed (MongoDB history + Redis Pub/Sub fan-out)
	r.Get("/api/rooms/{roomID}/access", handlers.RoomAccess)
	r.Get("/api/rooms/{roomID}/messages", handlers.RoomMessages)
	r.Post("/api/rooms/{roomID}/messages", handlers.PostMessage)
	r.Delete("/api/rooms/{roomID}/messages/{messageID}", handlers.DeleteRoomMessage)

	// Wallet routes
	r.Get("/api/wallet", handlers.Wallet)
	r.With(middleware.PurchaseRateLimit).Post("/api/wallet/topup", handlers.CreateTopUp)
	r.Post("/api/wallet/withdrawals", handlers.RequestWithdrawal)
	r.Get("/api/wallet/withdrawals", handlers.WithdrawalHistory)
	r.Post("/api/wallet/payout-key", handlers.SavePayoutKey)
	r.Get("/api/wallet/sales", handlers.SalesHistory)

	// Payment gateway webhook (signature-verified, no session)
	r.Post("/api/webhooks/stripe", handlers.StripeWebhook)

	// Media uploads
	r.Post("/api/upload", handlers.UploadMedia)
	r.Post("/api/upload/avatar", handlers.UploadProfilePhoto)

	// WebSocket endpoint for the realtime room feed gateway
	r.Get("/ws/rooms", handlers.RoomFeed)
}
