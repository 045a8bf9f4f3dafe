package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	invoiceapp "github.com/erp/ledger/internal/application/invoice"
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	paymentapp "github.com/erp/ledger/internal/application/payment"
	"github.com/erp/ledger/internal/application/projection"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payment"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledgerd",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("eventstore", cfg.EventStore.Driver),
	)

	serializer := eventstore.NewDomainSerializer()

	// Event store: the append-only log is the single source of truth
	var store eventstore.Store
	var checkpoints eventstore.CheckpointStore
	switch cfg.EventStore.Driver {
	case "sqlite":
		gormStore, err := eventstore.OpenSQLite(cfg.EventStore.DSN, serializer)
		if err != nil {
			log.Fatal("Failed to open event store", zap.Error(err))
		}
		store = gormStore
		checkpoints = gormStore
	default:
		store = eventstore.NewInMemoryStore(serializer)
		checkpoints = eventstore.NewInMemoryCheckpointStore()
	}

	// Idempotency store for the cross-aggregate reactors
	var idempotency shared.IdempotencyStore
	if cfg.Redis.IdempotencyBackend == "redis" {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect idempotency store", zap.Error(err))
		}
		idempotency = redisStore
	} else {
		idempotency = cache.NewInMemoryIdempotencyStore()
	}
	defer func() {
		_ = idempotency.Close()
	}()

	bus := event.NewInMemoryEventBus(log)

	// Repositories publish after the append commits
	entryRepo := persistence.NewJournalEntryRepository(store, serializer, bus)
	invoiceRepo := persistence.NewInvoiceRepository(store, serializer, bus)
	paymentRepo := persistence.NewPaymentRepository(store, serializer, bus)

	// Reference data: chart of accounts and tax policies
	chart := ledger.NewChartOfAccounts()
	accounts, vatPayableID, err := seedChart(chart)
	if err != nil {
		log.Fatal("Failed to seed chart of accounts", zap.Error(err))
	}
	taxPolicies := tax.NewPolicyRegistry()
	seedTaxPolicies(taxPolicies, vatPayableID)

	// Read models, rebuilt from the log before taking commands
	balances := projection.NewBalanceReadModel()
	invoices := projection.NewInvoiceReadModel()
	projector := projection.NewProjector("reporting", store, checkpoints, serializer, log,
		projection.WithBatchSize(cfg.Projector.BatchSize),
		projection.WithPollInterval(cfg.Projector.PollInterval),
	)
	projector.Register(balances)
	projector.Register(invoices)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := projector.Rebuild(ctx); err != nil {
		log.Fatal("Failed to rebuild read models", zap.Error(err))
	}

	// Application services
	sequences := ledgerapp.NewMemorySequenceAllocator(balances.MaxSequence())
	journalSvc := ledgerapp.NewJournalService(entryRepo, chart, sequences, log)

	// Command services for the embedding application. Constructed here so
	// wiring mistakes surface at startup; this daemon exposes no transport
	// of its own.
	_ = invoiceapp.NewInvoiceService(invoiceRepo, taxPolicies, log)
	_ = paymentapp.NewPaymentService(paymentRepo, invoices, log)

	// Reactors: idempotent on the triggering event, retried with backoff
	retryCfg := event.RetryConfig{
		MaxAttempts: cfg.Reactor.MaxAttempts,
		BaseBackoff: cfg.Reactor.BaseBackoff,
	}
	idemCfg := shared.IdempotencyConfig{Enabled: true, TTL: cfg.Reactor.IdempotencyTTL}

	approvedHandler := invoiceapp.NewInvoiceApprovedHandler(journalSvc, accounts, log)
	allocationHandler := paymentapp.NewAllocationRecordedHandler(invoiceRepo, journalSvc, accounts, log)
	for _, handler := range []shared.EventHandler{approvedHandler, allocationHandler} {
		wrapped := event.NewIdempotentHandler(
			event.NewRetryingHandler(handler, retryCfg, log),
			idempotency,
			log,
			event.WithIdempotencyConfig(idemCfg),
		)
		bus.Subscribe(wrapped, handler.EventTypes()...)
	}

	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	log.Info("ledgerd ready",
		zap.Int("accounts", len(chart.All())),
		zap.Strings("jurisdictions", taxPolicies.Keys()),
	)

	// Tail the log until shutdown
	if err := projector.Run(ctx); err != nil && err != context.Canceled {
		log.Error("Projector terminated", zap.Error(err))
	}

	shutdownCtx := context.Background()
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	log.Info("ledgerd stopped")
}

// seedChart registers a minimal default chart and returns the posting
// account bindings the reactors use, plus the VAT payable account
func seedChart(chart *ledger.ChartOfAccounts) (ledgerapp.PostingAccounts, uuid.UUID, error) {
	type seed struct {
		code string
		name string
		typ  ledger.AccountType
	}
	seeds := []seed{
		{"1000", "Cash", ledger.AccountTypeAsset},
		{"1010", "Bank", ledger.AccountTypeAsset},
		{"1200", "Accounts Receivable", ledger.AccountTypeAsset},
		{"2100", "VAT Payable", ledger.AccountTypeLiability},
		{"4000", "Revenue", ledger.AccountTypeRevenue},
	}

	byCode := make(map[string]*ledger.Account, len(seeds))
	for _, s := range seeds {
		account, err := ledger.NewAccount(s.code, s.name, s.typ, nil)
		if err != nil {
			return ledgerapp.PostingAccounts{}, uuid.Nil, err
		}
		if err := chart.Register(account); err != nil {
			return ledgerapp.PostingAccounts{}, uuid.Nil, err
		}
		byCode[s.code] = account
	}

	accounts := ledgerapp.PostingAccounts{
		Receivable: byCode["1200"].ID,
		Revenue:    byCode["4000"].ID,
		Settlement: map[string]uuid.UUID{
			payment.MethodCash.String():         byCode["1000"].ID,
			payment.MethodBankTransfer.String(): byCode["1010"].ID,
			payment.MethodCard.String():         byCode["1010"].ID,
			payment.MethodCheck.String():        byCode["1010"].ID,
		},
	}
	return accounts, byCode["2100"].ID, nil
}

// seedTaxPolicies registers the default jurisdiction configuration
func seedTaxPolicies(registry *tax.PolicyRegistry, vatPayableID uuid.UUID) {
	registry.Register(tax.JurisdictionConfig{
		Key: "DEFAULT",
		Rules: []tax.Rule{
			{
				Key:              "VAT_STANDARD",
				Name:             "VAT 15%",
				Rate:             decimal.RequireFromString("0.15"),
				PayableAccountID: vatPayableID,
				Exempt:           tax.ExemptCategories("EXEMPT"),
			},
		},
	})
}
