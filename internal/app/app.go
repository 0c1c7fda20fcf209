// Package app assembles the services shared by the server and worker
// binaries from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/pkg/distlock"
	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/repository/postgres"
	"github.com/ignite/mailroom/internal/security"
	"github.com/ignite/mailroom/internal/service/campaign"
	"github.com/ignite/mailroom/internal/service/contact"
	"github.com/ignite/mailroom/internal/service/group"
	"github.com/ignite/mailroom/internal/service/sending"
	"github.com/ignite/mailroom/internal/service/template"
	"github.com/ignite/mailroom/internal/service/user"
)

// App holds the wired dependencies.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	S3     *s3.Client

	Codec   *security.Codec
	Sender  sending.Sender
	Uploads attachment.UploadStore

	Dispatcher *campaign.Dispatcher
	Scheduler  *campaign.Scheduler
	Campaigns  *campaign.Service
	Contacts   *contact.Service
	Groups     *group.Service
	Templates  *template.Service
	Users      *user.Service
}

// New connects to PostgreSQL and, when configured, Redis and S3, then builds
// every service. Redis is optional: if it cannot be reached dispatch locks
// fall back to PostgreSQL advisory locks.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}

	a.Redis = openRedis(ctx, cfg.Redis.URL)

	a.Codec = security.NewCodec(cfg.Security.EncryptionKey, cfg.Security.HashPepper)
	if err := a.Codec.Validate(); err != nil {
		logger.Warn("contact encryption is not configured; contact writes and dispatch will fail", "error", err)
	}

	a.Sender, err = newSender(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openUploads(ctx); err != nil {
		a.Close()
		return nil, err
	}

	campaigns := postgres.NewCampaignRepo(db)
	locker := distlock.NewLocker(a.Redis, db, cfg.Dispatch.LockTTL())
	a.Dispatcher = campaign.NewDispatcher(campaigns, a.Codec, a.Sender,
		attachment.NewResolver(a.Uploads, nil), locker, cfg.Delivery.FromEmail,
		campaign.WithLockTTL(cfg.Dispatch.LockTTL()))
	a.Scheduler = campaign.NewScheduler(campaigns, a.Dispatcher, cfg.Scheduler.Interval())
	a.Campaigns = campaign.NewService(campaigns, a.Codec, a.Dispatcher)
	a.Contacts = contact.NewService(postgres.NewContactRepo(db), a.Codec)
	a.Groups = group.NewService(postgres.NewGroupRepo(db))
	a.Templates = template.NewService(postgres.NewTemplateRepo(db))
	a.Users = user.NewService(postgres.NewUserRepo(db))
	return a, nil
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")
	return db, nil
}

func openRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using database locks", "error", err)
		client.Close()
		return nil
	}
	logger.Info("connected to redis")
	return client
}

func newSender(ctx context.Context, cfg *config.Config) (sending.Sender, error) {
	switch sending.Provider(cfg.Delivery.Provider) {
	case sending.ProviderSES:
		return sending.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.UseDefaultChain), nil
	case sending.ProviderResend, "":
		return sending.NewResendSender(cfg.Delivery.APIKey, cfg.Delivery.BaseURL, cfg.Delivery.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Delivery.Provider)
	}
}

func (a *App) openUploads(ctx context.Context) error {
	u := a.Config.Uploads
	if u.Type != "s3" {
		store, err := attachment.NewLocalStore(u.LocalDir)
		if err != nil {
			return fmt.Errorf("open upload directory: %w", err)
		}
		a.Uploads = store
		return nil
	}
	if u.S3Bucket == "" {
		return fmt.Errorf("UPLOADS_S3_BUCKET is required for s3 upload storage")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(u.S3Region))
	if err != nil {
		return fmt.Errorf("loading AWS config for upload store: %w", err)
	}
	a.S3 = s3.NewFromConfig(awsCfg)
	a.Uploads = attachment.NewS3Store(a.S3, u.S3Bucket, u.S3Prefix)
	return nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
