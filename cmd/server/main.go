package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vaultpos/internal/cache"
	"vaultpos/internal/config"
	"vaultpos/internal/httpapi"
	"vaultpos/internal/labels"
	"vaultpos/internal/metrics"
	"vaultpos/internal/payment"
	"vaultpos/internal/service"
	"vaultpos/internal/store"
	"vaultpos/internal/store/memory"
	pgstore "vaultpos/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("postgres migration failed: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded(cfg.StoreID)
		log.Println("repository: in-memory")
	}

	inventoryCache := cache.InventoryCache(cache.NoopInventoryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisInventoryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			inventoryCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}
	repo = cache.NewInventoryRepository(repo, inventoryCache, time.Duration(cfg.InventoryCacheTTLSeconds)*time.Second)

	upi := payment.NewUPI(cfg.UPIPayeeName, cfg.Currency, cfg.UPIDefaultPayee)
	svc := service.New(repo, upi, cfg.StoreID)
	svc.SetLabelSheet(labels.NewSheet(labels.QRRenderer{}, cfg.CurrencySymbol))
	svc.SetMetrics(metrics.New(prometheus.DefaultRegisterer))

	if cfg.LabelBucket.Enabled() {
		archive, err := labels.NewS3Archive(ctx, labels.ArchiveConfig{
			Bucket:    cfg.LabelBucket.Name,
			Endpoint:  cfg.LabelBucket.Endpoint,
			Region:    cfg.LabelBucket.Region,
			AccessKey: cfg.LabelBucket.AccessKey,
			SecretKey: cfg.LabelBucket.SecretKey,
		})
		if err != nil {
			log.Printf("label archive unavailable (%v), sheets will not be archived", err)
		} else {
			svc.SetLabelArchive(archive)
			log.Printf("label archive: %s", cfg.LabelBucket.Name)
		}
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.StoreID, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("vaultpos listening on %s (store %s)", cfg.Address(), cfg.StoreID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.StoreID == "" {
		return fmt.Errorf("DEFAULT_STORE_ID must not be empty")
	}
	return nil
}
