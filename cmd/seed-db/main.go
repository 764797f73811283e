// Command seed-db runs migrations and loads development data: the product
// catalog from a JSON file, a handful of marketing coupons, and the customer
// and admin API keys.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nimbusmart/storefront/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	OldPrice decimal.Decimal `json:"oldPrice"`
	Stock    int             `json:"stock"`
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, category, price, old_price, stock, active)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category,
			price = EXCLUDED.price, old_price = EXCLUDED.old_price,
			stock = EXCLUDED.stock, active = TRUE`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_amount, max_discount, usage_limit, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			min_amount = EXCLUDED.min_amount, max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit, description = EXCLUDED.description,
			active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id, name, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = EXCLUDED.key_hash, user_id = EXCLUDED.user_id,
			name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "customer API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or STORE_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("STORE_SEED_ADMIN_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, adminKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKeys(ctx, pool, apiKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Category, p.Price, p.OldPrice, p.Stock)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type couponSeed struct {
	code         string
	discountType string
	value        decimal.Decimal
	minAmount    decimal.Decimal
	maxDiscount  decimal.Decimal
	usageLimit   int
	description  string
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	coupons := []couponSeed{
		{
			code:         "WELCOME10",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			minAmount:    decimal.NewFromInt(50),
			description:  "Welcome: 10% off orders over $50",
		},
		{
			code:         "SAVE20",
			discountType: "fixed_amount",
			value:        decimal.NewFromInt(20),
			minAmount:    decimal.NewFromInt(100),
			usageLimit:   500,
			description:  "Flat $20 off orders over $100",
		},
		{
			code:         "FREESHIP",
			discountType: "free_shipping",
			value:        decimal.Zero,
			description:  "Free shipping on any order",
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.value, c.minAmount, c.maxDiscount, c.usageLimit, c.description)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, apiKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	if err := upsertKey(ctx, pool, "customer", apiKey, pepper,
		"user-demo", "Demo customer key", []string{"orders"}); err != nil {
		return err
	}

	if adminKey != "" {
		if err := upsertKey(ctx, pool, "admin", adminKey, pepper,
			"user-admin", "Demo admin key", []string{"orders", "admin"}); err != nil {
			return err
		}
	}

	return nil
}

func upsertKey(ctx context.Context, pool *pgxpool.Pool, id, key, pepper, userID, name string, scopes []string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, id, keyHash, userID, name, scopes); err != nil {
		return errors.Wrapf(err, "upsert API key %s", id)
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("name", name))
	return nil
}
