package access

import (
	"context"
	"net/http"
	"time"

	"github.com/wanderaudio/guidekit/migrations"
	"github.com/wanderaudio/guidekit/pkg/billing"
	"github.com/wanderaudio/guidekit/pkg/catalog"
	"github.com/wanderaudio/guidekit/pkg/config"
	"github.com/wanderaudio/guidekit/pkg/consumption"
	"github.com/wanderaudio/guidekit/pkg/entitlement"
	"github.com/wanderaudio/guidekit/pkg/logger"
	"github.com/wanderaudio/guidekit/pkg/pg"
	"github.com/wanderaudio/guidekit/pkg/reconciler"
	"github.com/wanderaudio/guidekit/pkg/redis"
)

// Config aggregates everything the access service reads from the
// environment.
type Config struct {
	Logger logger.Config
	PG     pg.Config
	Redis  redis.Config
	Paddle billing.PaddleConfig

	CatalogFile string        `env:"CATALOG_FILE,required"`
	SnapshotTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"5m"`
}

// Setup loads configuration, connects PostgreSQL and Redis, applies pending
// migrations, and returns the fully wired HTTP handler. Intended for main.
func Setup(ctx context.Context) (http.Handler, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	log := logger.NewFromConfig(cfg.Logger, logger.WithAttrs(logger.Component("access")))

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, migrations.FS, log); err != nil {
		return nil, err
	}

	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(ctx, catalog.NewYAMLFileSource(cfg.CatalogFile))
	if err != nil {
		return nil, err
	}

	provider, err := billing.NewPaddleProvider(cfg.Paddle)
	if err != nil {
		return nil, err
	}

	ledgerStore := NewPGLedgerStore(pool)
	billingStore := NewPGBillingStore(pool)

	consumer := consumption.NewService(ledgerStore, consumption.WithLogger(log))
	resolver := entitlement.NewResolver(billingStore, billingStore, consumer, cat,
		entitlement.WithLogger(log))
	rec := reconciler.New(billingStore, billingStore, billingStore, consumer, cat,
		reconciler.WithLogger(log))

	svc := NewService(consumer, resolver, rec, provider,
		WithLogger(log),
		WithSnapshotCache(NewRedisSnapshotCache(client, cfg.SnapshotTTL)),
	)

	r := Router(svc)
	r.Get("/healthz", healthHandler(pg.Healthcheck(pool), redis.Healthcheck(client)))
	return r, nil
}

func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
