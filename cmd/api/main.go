package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-kitchen-orders/internal/auth"
	"github.com/ariefcatur/go-kitchen-orders/internal/config"
	"github.com/ariefcatur/go-kitchen-orders/internal/errlog"
	"github.com/ariefcatur/go-kitchen-orders/internal/httpx"
	"github.com/ariefcatur/go-kitchen-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-kitchen-orders/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/poller"
	"github.com/ariefcatur/go-kitchen-orders/internal/postgres"
	"github.com/ariefcatur/go-kitchen-orders/internal/redisx"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
	"github.com/ariefcatur/go-kitchen-orders/internal/storesocket"
	"github.com/ariefcatur/go-kitchen-orders/internal/webhook"
	"github.com/ariefcatur/go-kitchen-orders/internal/woo"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, errFile := newLogger(cfg)
	slog.SetDefault(log)
	if errFile != nil {
		defer errFile.Close()
	}

	if err := run(cfg, log, errFile); err != nil {
		log.Error("exit", "error", err)
		os.Exit(1)
	}
}

// newLogger writes JSON to stdout and mirrors errors to the error log file
// when one is configured.
func newLogger(cfg config.Config) (*slog.Logger, *errlog.File) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.ErrorLogPath == "" {
		return slog.New(h).With("service", cfg.ServiceName), nil
	}
	f, err := errlog.Open(cfg.ErrorLogPath, errlog.MaxSize)
	if err != nil {
		l := slog.New(h).With("service", cfg.ServiceName)
		l.Warn("error log disabled", "path", cfg.ErrorLogPath, "error", err)
		return l, nil
	}
	h = errlog.NewTee(h, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelError}), slog.LevelError)
	return slog.New(h).With("service", cfg.ServiceName), f
}

func run(cfg config.Config, log *slog.Logger, errFile *errlog.File) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	// Settings and update journal
	var (
		backend settings.Backend = settings.NewMemoryBackend()
		journal orders.Journal   = orders.NewMemoryJournal()
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		backend = &postgres.SettingsRepo{DB: db}
		journal = &postgres.JournalRepo{DB: db}
	} else {
		log.Warn("POSTGRES_DSN not set; settings and journal kept in memory")
	}

	// Redis
	var (
		rdb       *redis.Client
		revoker   auth.Revoker = auth.NewMemoryRevoker()
		menuCache inventory.Cache
		snapStore poller.Store
	)
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		revoker = redisx.Denylist{RDB: rdb}
		menuCache = redisx.MenuCache{RDB: rdb}
		snapStore = redisx.SnapshotStore{RDB: rdb}
	}

	prov := settings.NewProvider(backend)
	store := woo.New(prov, nil, log.With("component", "woo"))
	prov.VerifyWith(store.VerifyCredentials)
	seedSettings(ctx, cfg, prov, log)

	repo := orders.NewRepo(store, journal, log.With("component", "orders"))
	if prov.Configured(ctx) {
		rep, err := repo.Recover(ctx)
		if err != nil {
			log.Error("update journal recovery", "error", err)
		} else if len(rep.Restored)+len(rep.Abandoned) > 0 {
			log.Warn("recovered interrupted order updates", "restored", rep.Restored, "abandoned", rep.Abandoned)
		}
	}

	poll := poller.New(repo, poller.Options{
		Interval: cfg.PollInterval,
		Filter:   orders.Filter{Statuses: orders.AllStatuses},
		Ready: func(ctx context.Context) error {
			_, err := prov.Store(ctx)
			return err
		},
		Store: snapStore,
		Log:   log.With("component", "poller"),
	})

	// Kafka
	var (
		events orders.Publisher = orders.NopPublisher{}
		prod   *kafkax.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrdersChanged, 1024, log.With("component", "producer"))
		prod.Start()
		events = prod
	}

	wf := orders.NewWorkflows(repo, poll, events, cfg.Producer(), loc, log.With("component", "workflows"))
	menu := inventory.NewService(store, menuCache, prov, events, cfg.Producer(), log.With("component", "menu"))

	prov.OnSave(func(ctx context.Context, key string) {
		if key != settings.KeyStore {
			return
		}
		poll.Invalidate()
		menu.Invalidate(ctx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		router := kafkax.NewRouter(cfg.Producer(), log.With("component", "events"))
		if rdb != nil {
			router.Dedup = func(ctx context.Context, eventID string) (bool, error) {
				return redisx.MarkOnce(ctx, rdb, fmt.Sprintf(redisx.KeyDedup, cfg.Producer(), eventID), redisx.TTLDedup)
			}
		}
		router.On(orders.EventProductStockChanged, menu.HandleStockChanged)
		router.Default(func(ctx context.Context, env orders.Envelope) error {
			poll.Invalidate()
			return nil
		})
		group := cfg.ServiceName + "-" + cfg.InstanceID
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrdersChanged, 4, log.With("component", "consumer"))
		go func() {
			log.Info("event consumer started", "group", group, "topic", orders.TopicOrdersChanged)
			if err := cons.Start(ctx, router.Handle); err != nil {
				log.Error("event consumer stopped", "error", err)
			}
		}()
	}

	go func() { _ = poll.Run(ctx) }()

	var socket *storesocket.Manager
	if cfg.StoreSocket {
		socket = storesocket.NewManager(prov, poll, log.With("component", "storesocket"))
		if prov.Configured(ctx) {
			if err := socket.Connect(ctx); err != nil {
				log.Warn("store socket not started", "error", err)
			}
		}
		defer socket.Disconnect()
	}

	users, err := auth.NewTable(0,
		auth.Entry{Username: "manager", Role: auth.RoleManager, Password: cfg.ManagerPassword},
		auth.Entry{Username: "owner", Role: auth.RoleOwner, Password: cfg.OwnerPassword},
	)
	if err != nil {
		return err
	}
	if users.Len() == 0 {
		log.Warn("no staff passwords configured; login is impossible")
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set; sessions end on restart")
	}

	api := &httpx.API{
		Users:     users,
		Issuer:    auth.NewIssuer(secret, auth.SessionTTL),
		Revoker:   revoker,
		Orders:    poll,
		Workflows: wf,
		View:      orders.NewViewModel(loc),
		Menu:      menu,
		Settings:  prov,
		Chat:      webhook.New(prov, nil, log.With("component", "webhook")),
		ErrorLog:  errFile,
		Socket:    socket,
		Log:       log,
	}
	r := httpx.NewRouter()
	api.Register(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
	return nil
}

// seedSettings stores settings from the environment on first start only.
func seedSettings(ctx context.Context, cfg config.Config, prov *settings.Provider, log *slog.Logger) {
	if cfg.StoreURL != "" {
		seeded, err := prov.Seed(ctx, settings.KeyStore, settings.Store{
			StoreURL:          cfg.StoreURL,
			ConsumerKey:       cfg.StoreConsumerKey,
			ConsumerSecret:    cfg.StoreConsumerSecret,
			PreferredCategory: cfg.StorePreferredCategory,
		})
		if err != nil {
			log.Error("seed store settings", "error", err)
		} else if seeded {
			log.Info("store settings seeded from environment")
		}
	}
	if cfg.WebhookURL != "" {
		if _, err := prov.Seed(ctx, settings.KeyWebhook, settings.Webhook{WebhookURL: cfg.WebhookURL}); err != nil {
			log.Error("seed webhook settings", "error", err)
		}
	}
}
