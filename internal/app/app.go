// Package app は設定の読み込み、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/linkedout/internal/api"
	"github.com/hitoshi/linkedout/internal/config"
	"github.com/hitoshi/linkedout/internal/form"
	"github.com/hitoshi/linkedout/internal/handler"
	"github.com/hitoshi/linkedout/internal/logger"
	"github.com/hitoshi/linkedout/internal/media"
	"github.com/hitoshi/linkedout/internal/metrics"
	"github.com/hitoshi/linkedout/internal/middleware"
	"github.com/hitoshi/linkedout/internal/query"
	"github.com/hitoshi/linkedout/internal/security"
	"github.com/hitoshi/linkedout/internal/store"
	"github.com/hitoshi/linkedout/internal/worker/refresh"
)

const (
	// uploadTimeout は画像アップロードのHTTPタイムアウト。
	uploadTimeout = 30 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定されたレベルでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Components はワイヤリング済みの依存関係。
type Components struct {
	Config      *config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Collector   *metrics.Collector
	Client      *api.Client
	Store       *store.Store
	RateLimiter *middleware.RateLimiter
	Refresher   *refresh.Scheduler
	Handler     http.Handler

	unsubscribe func()
}

// Build は設定から全依存関係を構築する。
// 使い終わったらCloseを呼ぶ。
func Build(cfg *config.Config, log *slog.Logger) *Components {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. Repositoryクライアントとストア
	client := api.NewClient(&http.Client{Timeout: cfg.APITimeout}, cfg.APIBaseURL, collector, log)
	s := store.NewStore(client, collector, log)
	unsubscribe := s.Subscribe(func(state store.State) {
		collector.RecordCacheSize(state.Len(), state.ExperienceCount())
	})

	// 3. フォーム検証と画像アップロード
	guard := security.NewSSRFGuard()
	validator := form.NewValidator(security.NewTextSanitizer(), guard)
	uploader := media.NewUploader(
		guard.NewSafeClient(uploadTimeout),
		cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset, cfg.UploadMaxSize,
		collector, log,
	)

	// 4. ルーター
	rlCfg := middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMutation)
	rlCfg.TrustProxy = cfg.TrustProxy
	limiter := middleware.NewRateLimiter(rlCfg, log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		Store:              s,
		Validator:          validator,
		Filters:            query.NewCompiler(),
		Uploader:           uploader,
		Pinger:             client,
		MetricsHandler:     metrics.Handler(reg),
	})

	c := &Components{
		Config:      cfg,
		Logger:      log,
		Registry:    reg,
		Collector:   collector,
		Client:      client,
		Store:       s,
		RateLimiter: limiter,
		Handler:     router,
		unsubscribe: unsubscribe,
	}

	// 5. 定期再取得（REFRESH_INTERVAL=0 は無効）
	if cfg.RefreshInterval > 0 {
		c.Refresher = refresh.NewScheduler(s, collector, log, cfg.RefreshInterval)
	}
	return c
}

// Close はバックグラウンドのリソースを解放する。
func (c *Components) Close() {
	c.RateLimiter.Stop()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMでキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, w, os.Stdout, args)
}

// RunContext はctxがキャンセルされるまでサブコマンドを実行する。
// logOutには構造化ログを、outにはsyncサブコマンドの出力を書き込む。
func RunContext(ctx context.Context, logOut, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, port)
	}

	cfg, log, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	c := Build(cfg, log)
	defer c.Close()

	switch cmd {
	case CommandSync:
		return runSync(ctx, c, out)
	default:
		ln, err := net.Listen("tcp", cfg.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
		}
		return serve(ctx, c, ln)
	}
}

// serve はlnでHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンを行う。
func serve(ctx context.Context, c *Components, ln net.Listener) error {
	server := &http.Server{
		Handler:      c.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 初回のユーザー一覧取得
	if c.Refresher != nil {
		go c.Refresher.Start(bgCtx)
	} else {
		go func() {
			if err := c.Store.FetchAllUsers(bgCtx); err != nil {
				c.Logger.Warn("initial user fetch failed", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	c.Logger.Info("API server stopped gracefully")
	return nil
}

// runSync はユーザー一覧を1回取得し、1ユーザー1行（ID、氏名、現職）で書き出す。
func runSync(ctx context.Context, c *Components, out io.Writer) error {
	if err := c.Store.FetchAllUsers(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	for _, u := range c.Store.AllUsers() {
		position := u.CurrentPosition()
		if position == "" {
			position = "-"
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, u.FullName(), position); err != nil {
			return fmt.Errorf("write sync output: %w", err)
		}
	}
	c.Logger.Info("sync completed", slog.Int("users", c.Store.Snapshot().Len()))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
