// Package app wires the application together. Missing infrastructure
// degrades rather than aborts: no Redis falls back to in-process stores,
// no PostgreSQL disables the scan and enforcement surfaces.
package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclassifieds/gatekeeper/internal/admission"
	"github.com/openclassifieds/gatekeeper/internal/auth"
	"github.com/openclassifieds/gatekeeper/internal/config"
	"github.com/openclassifieds/gatekeeper/internal/database"
	"github.com/openclassifieds/gatekeeper/internal/httpapi"
	"github.com/openclassifieds/gatekeeper/internal/logging"
	"github.com/openclassifieds/gatekeeper/internal/models"
	"github.com/openclassifieds/gatekeeper/internal/notify"
	"github.com/openclassifieds/gatekeeper/internal/patterns"
	"github.com/openclassifieds/gatekeeper/internal/queue"
	"github.com/openclassifieds/gatekeeper/internal/rules"
	"github.com/openclassifieds/gatekeeper/internal/scan"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Scorer     *scorer.Scorer
	Controller *admission.Controller
	Workers    *queue.WorkerPool
	HTTPServer *httpapi.Server

	db             *database.DB
	redisClient    *redis.Client
	jobQueue       queue.Queue
	resultStore    queue.ResultStore
	counterStore   admission.CounterStore
	orchestrator   *scan.Orchestrator
	violationStore *database.ViolationStore
	dispatcher     *notify.Dispatcher
	workerCount    int
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = initLogger(cfg.Logging.Level)

	table, err := rules.Load(cfg.Rules.TablePath)
	if err != nil {
		app.Logger.Warn("Failed to load rule table, using built-in rules",
			logging.WithField("path", cfg.Rules.TablePath),
			logging.WithField("error", err.Error()))
		table = rules.Default()
	}
	app.Scorer = scorer.New(table, app.Logger)

	app.initSharedStores()
	app.initDatabaseServices()

	admCfg := admission.Config{
		OwnerPerMinute:  cfg.Admission.OwnerPerMinute,
		OwnerPerHour:    cfg.Admission.OwnerPerHour,
		SourcePerMinute: cfg.Admission.SourcePerMinute,
		ImmediateMax:    cfg.Admission.ImmediateMax,
		QueuedMax:       cfg.Admission.QueuedMax,
		Workers:         cfg.Queue.Workers,
		PerJobTime:      cfg.Queue.PerJobTime,
		ResultTTL:       cfg.Queue.ResultTTL,
		JobMaxAge:       cfg.Queue.JobMaxAge,
	}
	app.Controller = admission.NewController(admCfg, app.counterStore, app.jobQueue, app.resultStore, app.Scorer, app.Logger)
	app.Workers = queue.NewWorkerPool(app.jobQueue, app.resultStore, app.Scorer, cfg.Queue.ResultTTL, app.Logger)
	app.workerCount = cfg.Queue.Workers

	authMiddleware := auth.NewMiddleware(cfg.Auth, app.Logger)
	app.HTTPServer = httpapi.New(app.Controller, app.orchestrator, app.resolverOrNil(), app.notifierOrNil(), cfg.Notify.AdminEmail, authMiddleware, app.Logger)

	return app, nil
}

// Run starts the worker pool and the HTTP server
func (a *App) Run(ctx context.Context) error {
	a.Workers.Start(ctx, a.workerCount)
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	a.Workers.Wait()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Error("Redis close error", logging.WithField("error", err.Error()))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}
	return nil
}

func initLogger(levelName string) *logging.Logger {
	level := logging.LevelInfo
	switch levelName {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

// initSharedStores connects the queue, result store, and rate counters to
// Redis, falling back to in-process equivalents when it is unreachable.
func (a *App) initSharedStores() {
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("Failed to connect to Redis, using in-process queue and counters",
			logging.WithField("addr", a.Config.Redis.Addr),
			logging.WithField("error", err.Error()))
		client.Close()
		a.jobQueue = queue.NewMemoryQueue()
		a.resultStore = queue.NewMemoryResultStore()
		a.counterStore = admission.NewMemoryCounterStore()
		return
	}

	a.Logger.Info("Connected to Redis", logging.WithField("addr", a.Config.Redis.Addr))
	a.redisClient = client
	a.jobQueue = queue.NewRedisQueue(client, "")
	a.resultStore = queue.NewRedisResultStore(client, "")
	a.counterStore = admission.NewRedisCounterStore(client, "")
}

func (a *App) initDatabaseServices() {
	dbConfig := database.Config{
		Host:     a.Config.Database.Host,
		Port:     a.Config.Database.Port,
		User:     a.Config.Database.User,
		Password: a.Config.Database.Password,
		Database: a.Config.Database.Database,
		SSLMode:  a.Config.Database.SSLMode,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		a.Logger.Warn("Failed to connect to PostgreSQL, scans and enforcement disabled",
			logging.WithField("error", err.Error()))
		return
	}

	if err := db.Migrate(context.Background()); err != nil {
		a.Logger.Warn("Failed to run migrations, scans and enforcement disabled",
			logging.WithField("error", err.Error()))
		db.Close()
		return
	}
	a.Logger.Info("Connected to PostgreSQL")
	a.db = db

	listingStore := database.NewListingStore(db)
	ownerStore := database.NewOwnerStore(db)
	logStore := database.NewNotificationLogStore(db)
	a.violationStore = database.NewViolationStore(db)

	var reports scan.ReportStore = database.NewScanReportStore(db)
	if a.redisClient != nil {
		reports = scan.NewCachedReports(reports, scan.NewRedisReportCache(a.redisClient, ""), a.Logger)
	}

	history := &historyStore{listings: listingStore, violations: a.violationStore}
	analyzer := patterns.New(history, a.Logger)

	a.orchestrator = scan.New(listingStore, a.Scorer, analyzer, &ledger{a.violationStore}, reports, a.Logger)
	a.orchestrator.SetDefaults(a.Config.Scan.DefaultLimit, a.Config.Scan.SinceHours)

	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     a.Config.Notify.SMTPHost,
		Port:     a.Config.Notify.SMTPPort,
		Username: a.Config.Notify.SMTPUsername,
		Password: a.Config.Notify.SMTPPassword,
		From:     a.Config.Notify.FromAddr,
	})
	a.dispatcher = notify.NewDispatcher(sender, ownerStore, listingStore, logStore, a.Config.Notify.FromAddr, a.Logger)
}

func (a *App) resolverOrNil() httpapi.ViolationResolver {
	if a.violationStore == nil {
		return nil
	}
	return a.violationStore
}

func (a *App) notifierOrNil() httpapi.Notifier {
	if a.dispatcher == nil {
		return nil
	}
	return a.dispatcher
}

// historyStore adapts the listing and violation stores to the pattern
// analyzer's view of owner history
type historyStore struct {
	listings   *database.ListingStore
	violations *database.ViolationStore
}

func (h *historyStore) PriorViolationCount(ctx context.Context, ownerID string) (int, error) {
	return h.violations.PriorViolationCount(ctx, ownerID)
}

func (h *historyStore) RecentListingCount(ctx context.Context, ownerID string, since time.Time) (int, error) {
	return h.listings.RecentListingCount(ctx, ownerID, since)
}

func (h *historyStore) DuplicateExists(ctx context.Context, ownerID, title, description, excludeListingID string) (bool, error) {
	return h.listings.DuplicateExists(ctx, ownerID, title, description, excludeListingID)
}

// ledger adapts the violation store to the orchestrator's ledger interface
type ledger struct {
	store *database.ViolationStore
}

func (l *ledger) Upsert(ctx context.Context, rec *models.ViolationRecord) (*models.ViolationRecord, error) {
	return l.store.Upsert(ctx, rec)
}

func (l *ledger) PriorViolationCount(ctx context.Context, ownerID string) (int, error) {
	return l.store.PriorViolationCount(ctx, ownerID)
}
