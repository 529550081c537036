package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/sale/internal/access"
	"github.com/mtlprog/sale/internal/api"
	"github.com/mtlprog/sale/internal/config"
	"github.com/mtlprog/sale/internal/database"
	"github.com/mtlprog/sale/internal/domain"
	"github.com/mtlprog/sale/internal/event"
	"github.com/mtlprog/sale/internal/export"
	"github.com/mtlprog/sale/internal/issuance"
	"github.com/mtlprog/sale/internal/ledger"
	"github.com/mtlprog/sale/internal/oracle"
	"github.com/mtlprog/sale/internal/pricing"
	"github.com/mtlprog/sale/internal/sale"
	"github.com/mtlprog/sale/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:           "sale",
		Usage:          "single-unit asset sale service",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the sale service",
				Action: runServe,
			},
			{
				Name:   "export",
				Usage:  "write the audit report once and exit",
				Action: runExport,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Ledger gateway: one client serves as token backend, ownership
	// registry and both payment rails.
	gateway := ledger.NewClient(cfg.GatewayURL, cfg.GatewayRetryMax, cfg.GatewayRetryBaseDelay)

	// Oracle
	feed := oracle.NewFeedClient(cfg.RateFeedURL)
	quoteRepo := oracle.NewPgQuoteRepository(pool)
	oracleSvc := oracle.NewService(feed, quoteRepo, cfg.RateDecimals)

	// Issuance
	events := event.NewPgLog(pool)
	gate := access.NewGate(domain.AccountID(cfg.AdminAccount))
	stateRepo := issuance.NewPgStateRepository(pool)
	issuer := issuance.NewService(gateway, gate, events, stateRepo,
		domain.AccountID(cfg.TreasuryAccount), []byte(cfg.ClassMetadata))
	if err := issuer.Restore(ctx); err != nil {
		return fmt.Errorf("restoring sale state: %w", err)
	}

	// Purchase coordinator
	converter := pricing.NewConverter(cfg.StableDecimals, cfg.NativeDecimals, cfg.RateDecimals)
	coordinator, err := sale.NewCoordinator(sale.Params{
		PriceStable:    cfg.FixedPriceStable,
		StableToken:    domain.TokenID(cfg.StableTokenID),
		Treasury:       domain.AccountID(cfg.TreasuryAccount),
		StableDecimals: cfg.StableDecimals,
		NativeDecimals: cfg.NativeDecimals,
	}, issuer, gateway, gateway, gateway, converter, oracleSvc, events)
	if err != nil {
		return err
	}

	// Workers
	rateWorker := worker.NewRateWorker(oracleSvc, cfg.RatePollInterval)
	go rateWorker.Run(ctx)

	if exportSvc, err := buildExport(ctx, cfg, events, quoteRepo); err != nil {
		return err
	} else if exportSvc != nil {
		reportWorker := worker.NewReportWorker(exportSvc, cfg.ReportInterval)
		go reportWorker.Run(ctx)
	}

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, class creation endpoint is unprotected")
	}

	// HTTP server
	handler := api.NewHandler(coordinator, issuer, oracleSvc, events, cfg.RateDecimals)
	srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func runExport(c *cli.Context) error {
	cfg := config.Load()

	pool, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := event.NewPgLog(pool)
	quoteRepo := oracle.NewPgQuoteRepository(pool)

	exportSvc, err := buildExport(c.Context, cfg, events, quoteRepo)
	if err != nil {
		return err
	}
	if exportSvc == nil {
		return fmt.Errorf("no report destination configured (SHEETS_SPREADSHEET_ID or XLSX_PATH)")
	}
	return exportSvc.Export(c.Context)
}

// buildExport assembles the export service from the configured destinations.
// Returns nil when none is configured.
func buildExport(ctx context.Context, cfg config.Config, events event.Log, quotes oracle.QuoteRepository) (*export.Service, error) {
	var writers []export.ReportWriter

	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsJSON != "" {
		sw, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("creating sheets writer: %w", err)
		}
		writers = append(writers, sw)
	}
	if cfg.XLSXPath != "" {
		writers = append(writers, export.NewXlsxWriter(cfg.XLSXPath))
	}

	if len(writers) == 0 {
		return nil, nil
	}
	return export.NewService(events, quotes, writers...), nil
}
