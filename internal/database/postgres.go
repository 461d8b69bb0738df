package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Profiles table: one row per wallet (guest or authenticated)
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(50) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL DEFAULT '',
			credits INTEGER NOT NULL DEFAULT 0,
			earnings INTEGER NOT NULL DEFAULT 0,
			profile_photo TEXT,
			pix_key TEXT,
			picpay_email TEXT,
			paypal_email TEXT,
			stripe_email TEXT,
			is_guest BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Cards table (gallery / recurring source of truth)
		`CREATE TABLE IF NOT EXISTS cards (
			id VARCHAR(64) PRIMARY KEY,
			creator_id UUID REFERENCES profiles(id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			thumbnail TEXT,
			credit_cost INTEGER NOT NULL DEFAULT 0,
			media_url TEXT,
			media_type VARCHAR(10) NOT NULL DEFAULT 'none',
			category VARCHAR(100),
			group_label VARCHAR(100),
			tags TEXT[],
			duration INTEGER NOT NULL DEFAULT 0,
			expiry_seconds BIGINT NOT NULL DEFAULT 0,
			repeat_interval INTEGER NOT NULL DEFAULT 0,
			is_blur BOOLEAN NOT NULL DEFAULT FALSE,
			blur_level INTEGER NOT NULL DEFAULT 0,
			default_width INTEGER NOT NULL DEFAULT 0,
			layout_style VARCHAR(10) NOT NULL DEFAULT 'classic',
			card_color VARCHAR(20),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Sales transactions (append-only receipts)
		`CREATE TABLE IF NOT EXISTS sales_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seller_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			buyer_id UUID NOT NULL,
			buyer_name VARCHAR(50) NOT NULL,
			card_id VARCHAR(64) NOT NULL,
			card_title VARCHAR(255) NOT NULL,
			amount INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Withdrawal requests (append-only; status mutated by the payout operator)
		`CREATE TABLE IF NOT EXISTS withdrawals (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount INTEGER NOT NULL,
			method VARCHAR(10) NOT NULL,
			target_key TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			estimated_payout_at TIMESTAMP NOT NULL
		)`,

		// Payment transactions (credit top-ups; confirmed asynchronously by the gateway webhook)
		`CREATE TABLE IF NOT EXISTS payment_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			provider_ref VARCHAR(255) NOT NULL UNIQUE,
			amount INTEGER NOT NULL,
			credits_amount INTEGER NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			qr_code TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_profiles_username ON profiles(username)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_username_lower ON profiles(LOWER(username))`,
		`CREATE INDEX IF NOT EXISTS idx_cards_creator_id ON cards(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_repeat_interval ON cards(repeat_interval)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_created_at ON cards(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_seller_id ON sales_transactions(seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_buyer_card ON sales_transactions(buyer_id, card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales_transactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_user_id ON withdrawals(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_created_at ON withdrawals(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_transactions_user_id ON payment_transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_transactions_provider_ref ON payment_transactions(provider_ref)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
