package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/freshmart/internal/catalog"
	"github.com/hitoshi/freshmart/internal/config"
	"github.com/hitoshi/freshmart/internal/database"
	"github.com/hitoshi/freshmart/internal/gateway"
	"github.com/hitoshi/freshmart/internal/handler"
	"github.com/hitoshi/freshmart/internal/logger"
	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/middleware"
	"github.com/hitoshi/freshmart/internal/payment"
	"github.com/hitoshi/freshmart/internal/repository"
	"github.com/hitoshi/freshmart/internal/security"
	"github.com/hitoshi/freshmart/internal/storefront"
	"github.com/hitoshi/freshmart/internal/worker/catalogsync"
	"github.com/hitoshi/freshmart/internal/worker/cleanup"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("state_backend", string(cfg.StateBackend)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStateRepo は設定されたバックエンドのStateRepositoryを開き、疎通を確認する。
// 返されたcloseは呼び出し元が必ず呼ぶ。
func openStateRepo(ctx context.Context, cfg *config.Config) (repository.StateRepository, func() error, error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		repo := repository.NewRedisStateRepo(client, cfg.StateTTL)

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := repo.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return repo, client.Close, nil

	case config.StateBackendMemory:
		slog.Warn("クライアント状態をメモリに保持します。再起動で失われます")
		return repository.NewMemoryStateRepo(), func() error { return nil }, nil

	default:
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStateRepo(db), db.Close, nil
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, connectTimeout); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// server はserveモードで組み立てた依存関係。
type server struct {
	handler   http.Handler
	factory   *storefront.Factory
	limiter   *middleware.RateLimiter
	scheduler *catalogsync.Scheduler
}

// newServer はStateRepositoryとメトリクスレジストリからHTTPハンドラーを組み立てる。
func newServer(cfg *config.Config, repo repository.StateRepository, reg *prometheus.Registry) *server {
	log := slog.Default()
	mc := metrics.NewCollector(reg)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	gw := gateway.New(gateway.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
	}, log, mc)
	cache := catalog.NewCache(sanitizer, log, mc)

	factory := storefront.NewFactory(storefront.Deps{
		Repo:      repo,
		Gateway:   gw,
		Catalog:   cache,
		Sanitizer: sanitizer,
		Images:    payment.NewImageFetcher(ssrfGuard, cfg.APITimeout, log),
		Metrics:   mc,
		Logger:    log,
	})

	// configのレート制限はreq/min単位
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCheckout))

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		ClientCookie: middleware.ClientCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.ClientMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		States:           factory,
		Catalog:          cache,
		CatalogRefresher: factory,
		HealthChecker:    repo,
		MetricsHandler:   metrics.Handler(reg),
		Logger:           log,
	})

	return &server{
		handler:   otelhttp.NewHandler(router, "freshmart"),
		factory:   factory,
		limiter:   limiter,
		scheduler: catalogsync.NewScheduler(factory, log),
	}
}

// runServe はAPIサーバーモードで起動する。
// 状態ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 状態ストア
	repo, closeRepo, err := openStateRepo(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer closeRepo()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. ハンドラーの構築
	srv := newServer(cfg, repo, reg)
	defer srv.limiter.Stop()

	// 4. カタログの初回取得と定期再取得
	if cfg.CatalogRefreshInterval > 0 {
		go srv.scheduler.Start(ctx, cfg.CatalogRefreshInterval)
	} else {
		srv.scheduler.RunOnce(ctx)
	}

	// 5. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.APITimeout*2,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLに接続し、古いクライアント状態のクリーンアップを日次で実行する。
// Redisバックエンドはキーの有効期限で失効し、メモリバックエンドはプロセスと共に消えるため、
// PostgreSQL以外では何もせずに終了する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StateBackend != config.StateBackendPostgres {
		slog.Info("このバックエンドではクリーンアップは不要なためワーカーを終了します",
			slog.String("state_backend", string(cfg.StateBackend)),
		)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), cfg.StateRetentionDays)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("retention_days", cleanupJob.RetentionDays),
		slog.Duration("interval", cleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
