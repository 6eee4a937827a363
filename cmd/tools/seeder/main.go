// Seeder populates a development database with a demo tenant, a small
// catalogue, an open consignment, and a month of transactions.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ateliemoda/backend-atelie/internal/auth"
	"github.com/ateliemoda/backend-atelie/internal/config"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

func main() {
	var (
		tenantSlug = flag.String("tenant", "atelie-demo", "tenant slug to seed")
		tenantName = flag.String("tenant-name", "Atelie Demo", "tenant display name")
		adminPass  = flag.String("admin-password", "troque-me", "password for the seeded admin user")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	tenantID := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO tenants (id, slug, name, created_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		tenantID, *tenantSlug, *tenantName,
	); err != nil {
		log.Fatalf("seed tenant: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`SELECT id FROM tenants WHERE slug = $1`, *tenantSlug,
	).Scan(&tenantID); err != nil {
		log.Fatalf("load tenant id: %v", err)
	}

	hash, err := auth.HashPassword(*adminPass)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO users (id, tenant_id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (tenant_id, email) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		uuid.New(), tenantID, "admin@atelie.local", hash,
	); err != nil {
		log.Fatalf("seed admin user: %v", err)
	}

	tctx := tenant.WithTenant(ctx, tenantID.String())
	store := repo.NewStore(pool)

	products := []struct {
		label string
		sku   string
		price float64
		stock int
	}{
		{"vestido midi floral", "VM-001", 70, 25},
		{"saia longa linho", "SL-014", 50, 18},
		{"blusa seda off-white", "BS-031", 30, 40},
		{"calca alfaiataria", "CA-007", 60, 12},
	}
	for _, p := range products {
		if _, err := pool.Exec(tctx,
			`INSERT INTO products (id, tenant_id, label, sku, category, unit_price, stock_quantity, updated_at)
			 VALUES ($1, $2, $3, $4, 'vestuario', $5, $6, now())
			 ON CONFLICT (tenant_id, sku) DO NOTHING`,
			uuid.New(), tenantID, p.label, p.sku, p.price, p.stock,
		); err != nil {
			log.Fatalf("seed product %s: %v", p.sku, err)
		}
	}

	consignmentID, err := store.CreateConsignment(tctx, "consignment", "Loja Central", cfg.DefaultCommissionPercent)
	if err != nil {
		log.Fatalf("seed consignment: %v", err)
	}
	for _, p := range products[:3] {
		if _, err := store.AddLineItem(tctx, consignmentID, p.label, p.price, 10, uuid.Nil); err != nil {
			log.Fatalf("seed line item %s: %v", p.label, err)
		}
	}

	eventID, err := store.CreateConsignment(tctx, "event", "Bazar Primavera", cfg.DefaultCommissionPercent)
	if err != nil {
		log.Fatalf("seed event: %v", err)
	}
	for _, p := range products[1:] {
		if _, err := store.AddLineItem(tctx, eventID, p.label, p.price, 6, uuid.Nil); err != nil {
			log.Fatalf("seed event item %s: %v", p.label, err)
		}
	}

	now := time.Now()
	txs := []repo.TransactionRow{
		{Type: "income", DreCategory: "sales", CashImpact: true, Amount: 1250, Description: "vendas balcao", OccurredAt: now.AddDate(0, 0, -20)},
		{Type: "expense", DreCategory: "operational_cost", CashImpact: true, Amount: 380, Description: "aluguel atelier", OccurredAt: now.AddDate(0, 0, -15)},
		{Type: "expense", DreCategory: "cogs", CashImpact: true, Amount: 210, Description: "tecidos e aviamentos", OccurredAt: now.AddDate(0, 0, -10)},
		{Type: "expense", DreCategory: "", CashImpact: false, Amount: 45, Description: "taxas bancarias", OccurredAt: now.AddDate(0, 0, -5)},
	}
	for _, tx := range txs {
		if _, err := store.InsertTransaction(tctx, tx); err != nil {
			log.Fatalf("seed transaction: %v", err)
		}
	}

	log.Printf("seeded tenant %s (%s): consignment %s, event %s", *tenantSlug, tenantID, consignmentID, eventID)
}
