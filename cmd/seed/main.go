package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const demoPassword = "secret1"

func main() {
	env := getEnv("GREED_ENV", "dev")
	if env != "dev" && env != "test" {
		log.Fatalf("refusing to seed: GREED_ENV must be 'dev' or 'test' (got '%s')", env)
	}

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	db := getEnv("POSTGRES_DB", "greed_advisor")
	user := getEnv("POSTGRES_USER", "greed")
	password := getEnv("POSTGRES_PASSWORD", "greed")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, db, sslmode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	fmt.Println("Seeding database...")

	userID, err := seedUser(ctx, pool)
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}
	fmt.Println("✓ Demo user seeded")

	if err := seedKeys(ctx, pool, userID); err != nil {
		log.Fatalf("seed keys: %v", err)
	}
	fmt.Println("✓ Demo keys seeded")

	fmt.Printf("Done. Log in as demo@example.com / %s\n", demoPassword)
}

func seedUser(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), 12)
	if err != nil {
		return 0, err
	}

	var id int64
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ('demo@example.com', $1, 'Demo', 'Trader', now(), now())
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id
	`, string(hash)).Scan(&id)
	return id, err
}

func seedKeys(ctx context.Context, pool *pgxpool.Pool, userID int64) error {
	type seedKey struct {
		table         string
		column        string
		title         string
		discriminator string
		apiKey        string
	}
	keys := []seedKey{
		{"ai_api_keys", "provider", "Demo OpenAI key", "openai", "sk-demo-openai"},
		{"trading_api_keys", "access_type", "Demo Trading212 key", "read-only", "t212-demo"},
		{"market_data_api_keys", "provider", "Demo Finnhub key", "finnhub", "fh-demo"},
	}

	for _, key := range keys {
		_, err := pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (user_id, title, %s, api_key, is_active, created_at, updated_at)
			SELECT $1, $2, $3, $4, true, now(), now()
			WHERE NOT EXISTS (
				SELECT 1 FROM %s WHERE user_id = $1 AND title = $2 AND deleted_at IS NULL
			)
		`, key.table, key.column, key.table), userID, key.title, key.discriminator, key.apiKey)
		if err != nil {
			return fmt.Errorf("insert %s: %w", key.table, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
