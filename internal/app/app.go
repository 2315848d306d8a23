// Package app is the composition root shared by the till server and the
// command-line tool: Handler ← Service ← Repository ← DB/Redis.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/listener"
	"github.com/sde1000/quicktill-sub001/internal/pricing"
	"github.com/sde1000/quicktill-sub001/internal/repository"
	"github.com/sde1000/quicktill-sub001/internal/service"
	"github.com/sde1000/quicktill-sub001/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// lockWait is how long a terminal waits for another to release a lock.
const lockWait = 5 * time.Second

// App holds the wired services. RDB and everything built on it are nil
// when the tool runs without redis.
type App struct {
	Cfg *config.Config
	DB  *gorm.DB
	RDB *redis.Client

	Repos      service.Repositories
	Notifier   *infra.Notifier
	Dispatcher *worker.Dispatcher
	AccountsCB *infra.CircuitBreaker
	Accounts   *infra.AccountsClient
	Mailer     *infra.Mailer
	Printer    *infra.PDFPrinter

	Site       service.SiteConfigService
	Auth       service.AuthService
	Users      service.UserService
	Catalogue  service.CatalogueService
	Deliveries service.DeliveryService
	Stock      service.StockService
	StockLines service.StockLineService
	PLUs       service.PLUService
	Keyboard   service.KeyboardService
	Register   service.RegisterService
	Sessions   service.SessionService
}

// NewRepositories builds every GORM-backed store.
func NewRepositories(db *gorm.DB) service.Repositories {
	return service.Repositories{
		Units:        repository.NewUnitRepository(db),
		Departments:  repository.NewDepartmentRepository(db),
		Deliveries:   repository.NewDeliveryRepository(db),
		StockTypes:   repository.NewStockTypeRepository(db),
		Stock:        repository.NewStockRepository(db),
		StockLines:   repository.NewStockLineRepository(db),
		PLUs:         repository.NewPLURepository(db),
		Keyboard:     repository.NewKeyboardRepository(db),
		Transactions: repository.NewTransactionRepository(db),
		Sessions:     repository.NewSessionRepository(db),
		Users:        repository.NewUserRepository(db),
		Config:       repository.NewConfigRepository(db),
		Clock:        time.Now,
	}
}

// New wires the services. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	markup, err := decimal.NewFromString(cfg.PriceMarkup)
	if err != nil {
		return nil, fmt.Errorf("PRICE_MARKUP %q: %w", cfg.PriceMarkup, err)
	}

	a := &App{
		Cfg:        cfg,
		DB:         db,
		RDB:        rdb,
		Repos:      NewRepositories(db),
		AccountsCB: infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		Accounts:   infra.NewAccountsClient(cfg.AccountsURL, cfg.AccountsTimeout),
		Mailer:     infra.NewMailer(cfg),
		Printer:    infra.NewPDFPrinter(cfg.PDFStoragePath, cfg.TerminalName),
	}

	var (
		locker   service.Locker
		notifier service.ChangeNotifier
		hooks    service.SessionHooks = service.NoHooks{}
	)
	if rdb != nil {
		a.Notifier = infra.NewNotifier(rdb)
		a.Dispatcher = worker.NewDispatcher(rdb)
		locker = infra.NewLocker(rdb, lockWait)
		notifier = a.Notifier
		hooks = service.NewExportHooks(a.Repos.Sessions, a.Dispatcher)
	}

	guesser := pricing.NewPolicy(pricing.VATInclusive(markup, a.Repos.Clock))

	a.Site = service.NewSiteConfigService(a.Repos.Config, config.SiteOverrides(), notifier)
	a.Auth = service.NewAuthService(db, a.Repos, a.Site, cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)
	a.Users = service.NewUserService(db, a.Repos)
	a.Catalogue = service.NewCatalogueService(db, a.Repos)
	a.Deliveries = service.NewDeliveryService(db, a.Repos, guesser, locker)
	a.Stock = service.NewStockService(db, a.Repos, guesser)
	a.StockLines = service.NewStockLineService(db, a.Repos, locker)
	a.PLUs = service.NewPLUService(a.Repos)
	a.Keyboard = service.NewKeyboardService(a.Repos)
	a.Register = service.NewRegisterService(db, a.Repos, a.Site, a.Printer, locker)
	a.Sessions = service.NewSessionService(db, a.Repos, hooks, a.Printer, a.Site, locker)
	return a, nil
}

// Prepare brings the database up to date with this build: schema,
// permission catalogue and site configuration defaults.
func (a *App) Prepare(ctx context.Context) error {
	if err := infra.RunMigrations(a.DB); err != nil {
		return err
	}
	if err := a.Users.SyncPermissions(ctx); err != nil {
		return err
	}
	return a.Site.Sync(ctx)
}

// Start launches the background goroutines: job workers, the export retry
// cron, the config watcher and the UDP listeners. They stop when ctx is
// cancelled. It is a no-op without redis.
func (a *App) Start(ctx context.Context) {
	if a.RDB == nil {
		log.Warn().Msg("no redis; background workers disabled")
		return
	}

	siteName := ""
	if site, err := a.Site.Site(ctx); err == nil {
		siteName = site.SiteName
	}

	exports := worker.NewExportWorker(worker.ExportWorkerConfig{
		Sessions: a.Repos.Sessions,
		Summary:  a.Sessions,
		Accounts: a.Accounts,
		CB:       a.AccountsCB,
		RDB:      a.RDB,
		Terminal: a.Cfg.TerminalName,
	})
	pool := worker.NewPool(a.RDB)
	pool.Handle(worker.JobTakingsExport, exports)
	reports := worker.NewReportWorker(a.Sessions, a.Printer, a.Mailer, a.Cfg.ReportEmail, siteName)
	reports.KeepFailures(pool.Failed())
	pool.Handle(worker.JobTakingsReport, reports)
	pool.Start(ctx, a.Cfg.WorkerPoolSize)
	worker.StartRetryCron(ctx, exports)

	go a.Notifier.WatchConfig(ctx, a.Site.Invalidate)

	for _, l := range []struct {
		addr string
		mk   func(string, listener.Publisher) *listener.Listener
	}{
		{a.Cfg.BarcodeListen, listener.Barcode},
		{a.Cfg.UserTokenListen, listener.UserToken},
	} {
		if l.addr == "" {
			continue
		}
		ln := l.mk(l.addr, a.Notifier)
		go func() {
			if err := ln.Run(ctx); err != nil {
				log.Error().Err(err).Msg("udp listener failed")
			}
		}()
	}
}
