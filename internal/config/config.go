// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Repository
	APIBaseURL string        `env:"API_BASE_URL,required,notEmpty"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`

	// Server
	ServerPort         string   `env:"SERVER_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Refresh（0は無効）
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"0s"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral  int  `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitMutation int  `env:"RATE_LIMIT_MUTATION" envDefault:"30"`
	TrustProxy        bool `env:"TRUST_PROXY" envDefault:"false"`

	// Image upload（クラウド名が空の場合は無効）
	CloudinaryCloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryUploadPreset string `env:"CLOUDINARY_UPLOAD_PRESET" envDefault:"linkedout"`
	UploadMaxSize          int64  `env:"UPLOAD_MAX_SIZE" envDefault:"5242880"`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// .envの値は既に設定されている環境変数を上書きしない。
// envFilesが空の場合はカレントディレクトリの.envを読む。
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}

// UploadEnabled は画像アップロードが設定されているかを返す。
func (c *Config) UploadEnabled() bool {
	return c.CloudinaryCloudName != ""
}

// Addr はHTTPサーバーの待ち受けアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

func (c *Config) validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute http(s) URL: %q", c.APIBaseURL))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("API_TIMEOUT must be positive: %v", c.APITimeout))
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL must not be negative: %v", c.RefreshInterval))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL must be positive: %d", c.RateLimitGeneral))
	}
	if c.RateLimitMutation <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MUTATION must be positive: %d", c.RateLimitMutation))
	}
	if c.UploadMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_SIZE must be positive: %d", c.UploadMaxSize))
	}
	return errors.Join(errs...)
}
