// Command seed-db loads the menu, modification types, demo promocodes,
// and an admin API key into the database. It is idempotent: reruns upsert.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/appetit/checkout/internal/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or APPETIT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or APPETIT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("APPETIT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or APPETIT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("APPETIT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, pool); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedModificationTypes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed modification types")
	}
	if err := seedPromocodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promocodes")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool) error {
	items := []struct {
		id    int64
		name  string
		price string
	}{
		{1, "Doner classic", "1490.00"},
		{2, "Doner cheese", "1690.00"},
		{3, "Lavash beef", "1890.00"},
		{4, "Fries", "690.00"},
		{5, "Lemonade 0.5", "590.00"},
		{6, "Ayran", "390.00"},
	}

	slog.Info("upserting menu items", slog.Int("count", len(items)))

	for _, it := range items {
		_, err := pool.Exec(ctx, `
			INSERT INTO menu_items (id, name, price, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, active = TRUE`,
			it.id, it.name, decimal.RequireFromString(it.price))
		if err != nil {
			return errors.Wrapf(err, "upsert menu item %d", it.id)
		}
	}

	_, err := pool.Exec(ctx,
		`SELECT setval('menu_items_id_seq', (SELECT MAX(id) FROM menu_items))`)
	return errors.Wrap(err, "bump menu sequence")
}

func seedModificationTypes(ctx context.Context, pool *pgxpool.Pool) error {
	types := []struct {
		id   int64
		name string
	}{
		{1, "no onions"},
		{2, "no tomatoes"},
		{3, "extra cheese"},
		{4, "extra sauce"},
		{5, "spicy"},
	}

	slog.Info("upserting modification types", slog.Int("count", len(types)))

	for _, mt := range types {
		_, err := pool.Exec(ctx, `
			INSERT INTO modification_types (id, name, active)
			VALUES ($1, $2, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = $2, active = TRUE`,
			mt.id, mt.name)
		if err != nil {
			return errors.Wrapf(err, "upsert modification type %d", mt.id)
		}
	}

	_, err := pool.Exec(ctx,
		`SELECT setval('modification_types_id_seq', (SELECT MAX(id) FROM modification_types))`)
	return errors.Wrap(err, "bump modification type sequence")
}

func seedPromocodes(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now().UTC()
	codes := []struct {
		code        string
		kind        string
		value       string
		minSubtotal *string
		validTo     *time.Time
	}{
		{code: "WELCOME10", kind: "percent", value: "10"},
		{code: "LUNCH300", kind: "amount", value: "300", minSubtotal: ptr("2000")},
		{code: "SUMMER25", kind: "percent", value: "25", validTo: ptrTime(now.AddDate(0, 3, 0))},
	}

	slog.Info("upserting promocodes", slog.Int("count", len(codes)))

	for _, c := range codes {
		var minSubtotal *decimal.Decimal
		if c.minSubtotal != nil {
			d := decimal.RequireFromString(*c.minSubtotal)
			minSubtotal = &d
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO promocodes (code, kind, value, active, valid_to, min_subtotal)
			VALUES ($1, $2, $3, TRUE, $4, $5)
			ON CONFLICT (code) DO UPDATE
			SET kind = $2, value = $3, active = TRUE, valid_to = $4, min_subtotal = $5`,
			c.code, c.kind, decimal.RequireFromString(c.value), c.validTo, minSubtotal)
		if err != nil {
			return errors.Wrapf(err, "upsert promocode %s", c.code)
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (key_hash) DO UPDATE SET name = $3, scopes = $4, active = TRUE`,
		uuid.New().String(), keyHash, "Admin key", []string{"orders:write", "hours:write"})
	return errors.Wrap(err, "upsert admin API key")
}

func ptr(s string) *string { return &s }

func ptrTime(t time.Time) *time.Time { return &t }
