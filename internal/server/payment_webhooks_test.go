package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/config"
	creditrepo "github.com/makestack-ai/makestack/internal/credit/repository"
	creditservice "github.com/makestack-ai/makestack/internal/credit/service"
	"github.com/makestack-ai/makestack/internal/metrics"
	"github.com/makestack-ai/makestack/internal/server"
	"github.com/makestack-ai/makestack/internal/uptime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE credit_accounts (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			balance INTEGER NOT NULL DEFAULT 0,
			total_purchased INTEGER NOT NULL DEFAULT 0,
			total_used INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payment_records (
			id INTEGER PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			user_name TEXT,
			customer_id TEXT,
			amount NUMERIC NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			product_id TEXT,
			credits_granted INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE credit_transactions (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT,
			related_run_id TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE downtime_events (
			id INTEGER PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_seconds INTEGER,
			reason TEXT,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	node, err := snowflake.NewNode(50)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	creditSvc := creditservice.NewService(creditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  creditrepo.Provide(),
	})
	tracker := uptime.NewTracker(uptime.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
	})

	engine := server.NewEngine(log, metrics.New())
	srv := server.NewServer(server.Params{
		Engine:    engine,
		Log:       log,
		Cfg:       config.Config{HTTPAddr: ":0"},
		CreditSvc: creditSvc,
		Tracker:   tracker,
	})
	srv.RegisterRoutes()
	return engine, db
}

func webhookBody(paymentID string, credits int64) []byte {
	body, _ := json.Marshal(map[string]any{
		"event_type":  "checkout.completed",
		"payment_id":  paymentID,
		"customer_id": "cus_1",
		"amount":      "9.99",
		"currency":    "usd",
		"product_id":  "prod_starter",
		"credits":     credits,
		"user":        map[string]string{"id": "user_1", "name": "Test User"},
	})
	return body
}

func TestPaymentWebhookGrantsCredits(t *testing.T) {
	engine, db := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/creem", bytes.NewReader(webhookBody("pay_1", 500)))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var balance int64
	if err := db.Raw("SELECT balance FROM credit_accounts WHERE user_id = 'user_1'").Scan(&balance).Error; err != nil {
		t.Fatalf("scan balance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("expected balance 500, got %d", balance)
	}
}

func TestPaymentWebhookDuplicateDelivery(t *testing.T) {
	engine, db := newTestServer(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/creem", bytes.NewReader(webhookBody("pay_1", 500)))
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
		if i == 1 {
			var resp struct {
				AlreadyProcessed bool `json:"already_processed"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if !resp.AlreadyProcessed {
				t.Fatalf("second delivery not flagged as already processed")
			}
		}
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM payment_records").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 payment record, got %d", count)
	}
}

func TestPaymentWebhookIgnoresUnknownEvents(t *testing.T) {
	engine, db := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"event_type": "subscription.cancelled"})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/creem", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown events must be acknowledged, got %d", rec.Code)
	}

	var count int64
	if err := db.Raw("SELECT COUNT(1) FROM payment_records").Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("unknown event created payment records")
	}
}

func TestSpendEndpointInsufficientCredits(t *testing.T) {
	engine, _ := newTestServer(t)

	// Grant 100 credits first.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/creem", bytes.NewReader(webhookBody("pay_1", 100)))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook failed: %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]any{"credits": 200, "description": "big run"})
	req = httptest.NewRequest(http.MethodPost, "/v1/credits/user_1/spend", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUptimeEndpoint(t *testing.T) {
	engine, db := newTestServer(t)

	// Seed one closed hour-long downtime event inside the window.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-2 * time.Hour)
	end := now.Add(-1 * time.Hour)
	if err := db.Exec(
		`INSERT INTO downtime_events (id, started_at, ended_at, duration_seconds, reason, created_at)
		 VALUES (1, ?, ?, 3600, 'incident', ?)`,
		start, end, start,
	).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/uptime?window_hours=720", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		UptimePercent float64 `json:"uptime_percent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UptimePercent < 99.85 || resp.UptimePercent > 99.87 {
		t.Fatalf("expected ~99.86, got %f", resp.UptimePercent)
	}
}
