package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// maxURLLength は受け付ける画像URLの最大長。
const maxURLLength = 2048

// URLGuard はユーザーが指定する外部URL（プロフィール画像・会社ロゴ）と
// サーバーからの外向き通信（画像アップロード）に対するSSRF防止機能を定義する。
type URLGuard interface {
	// NewSafeClient はプライベートIP・ループバック・リンクローカル・メタデータIPへの
	// 接続をDialerレベルで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLの安全性をDNS解決なしで静的に検証する。
	ValidateURL(rawURL string) error
}

// blockedPrefixes は静的検証で拒否するアドレス範囲。
// 実際の接続先はsafeurlがDNS解決後に検証する。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),     // RFC 1918
	netip.MustParsePrefix("172.16.0.0/12"),  // RFC 1918
	netip.MustParsePrefix("192.168.0.0/16"), // RFC 1918
	netip.MustParsePrefix("127.0.0.0/8"),    // ループバック
	netip.MustParsePrefix("169.254.0.0/16"), // リンクローカル（メタデータIPを含む）
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// urlGuard はURLGuardの実装。
type urlGuard struct {
	schemes []string
}

// NewSSRFGuard はURLGuardの新しいインスタンスを生成する。
// schemesを省略した場合はhttpsのみを許可する。
func NewSSRFGuard(schemes ...string) *urlGuard {
	if len(schemes) == 0 {
		schemes = []string{"https"}
	}
	lower := make([]string, len(schemes))
	for i, s := range schemes {
		lower[i] = strings.ToLower(s)
	}
	return &urlGuard{schemes: lower}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックで解決後のIPアドレスを検証するため、
// DNS再バインディングにも対応する。
func (g *urlGuard) NewSafeClient(timeout time.Duration) *http.Client {
	ports := []int{443}
	if slices.Contains(g.schemes, "http") {
		ports = append(ports, 80)
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム・ホスト・IPアドレスを検証し、危険なURLの場合はエラーを返す。
func (g *urlGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("URL too long: %d > %d", len(rawURL), maxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(g.schemes, scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, g.schemes)
	}
	if parsed.User != nil {
		return fmt.Errorf("credentials in URL are not allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}

	if slices.Contains(blockedHostnames, strings.ToLower(strings.TrimSuffix(host, "."))) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
