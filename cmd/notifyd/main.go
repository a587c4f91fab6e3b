// notifyd consumes the notifications queue and delivers messages over email,
// SMS, push, and IM channels.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/broker"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/sender"
	"github.com/dmitrymomot/notifykit/pkg/template"
)

type appConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	FCMToken string `env:"FCM_ACCESS_TOKEN,required"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)

	log := logger.New(logCfg, logger.WithAttrs(slog.String("service", "notifyd")))
	slog.SetDefault(log)

	if err := run(ctx, log); err != nil && ctx.Err() == nil {
		log.Error("notifyd exited", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("notifyd stopped")
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		appCfg    appConfig
		brokerCfg broker.Config
		redisCfg  redis.Config
		emailCfg  sender.EmailConfig
		smsCfg    sender.SMSConfig
		pushCfg   sender.PushConfig
		imCfg     sender.IMConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&brokerCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&smsCfg)
	config.MustLoad(&pushCfg)
	config.MustLoad(&imCfg)

	// Persistence.
	pool, err := pgxpool.New(ctx, appCfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	storage := notify.NewPgStorage(pool)
	if err := storage.Migrate(ctx); err != nil {
		return err
	}

	// Rate limiting.
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	limiter, err := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient), ratelimit.DefaultRules())
	if err != nil {
		return err
	}

	// Channels.
	email, err := sender.NewEmail(emailCfg)
	if err != nil {
		return err
	}
	sms, err := sender.NewSMS(smsCfg)
	if err != nil {
		return err
	}
	push, err := sender.NewPush(pushCfg, sender.StaticToken(appCfg.FCMToken))
	if err != nil {
		return err
	}
	im, err := sender.NewIM(imCfg)
	if err != nil {
		return err
	}

	// Templates come from the same database as the notifications.
	engine, err := template.NewEngine(storage)
	if err != nil {
		return err
	}

	svc, err := notify.NewService(storage,
		[]notify.Sender{email, sms, push, im},
		notify.WithRateLimiter(limiter),
		notify.WithTemplates(engine),
		notify.WithLogger(log))
	if err != nil {
		return err
	}
	defer svc.Close()

	// Broker.
	conns := broker.NewConnManager(brokerCfg, broker.WithConnLogger(log))
	defer conns.Close()

	if err := broker.NewTopology(conns, brokerCfg).Declare(); err != nil {
		return err
	}

	consumer, err := broker.NewConsumer(conns, brokerCfg, broker.QueueNotifications,
		svc.HandleQueueMessage, broker.WithConsumerLogger(log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(ctx) })

	log.Info("notifyd started", slog.String("queue", broker.QueueNotifications))
	return g.Wait()
}
