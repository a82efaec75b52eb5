// Package gateway はリモート食料品APIへのHTTP通信を担う。
// リモートAPIへのI/Oはすべてこのパッケージを経由する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/hitoshi/freshmart/internal/metrics"
	"github.com/hitoshi/freshmart/internal/model"
)

const (
	// MsgRequestFailed はエラーレスポンスにdetailがない場合のメッセージ。
	MsgRequestFailed = "Request failed"
	// MsgNetworkError は通信失敗、またはレスポンスがJSONでない場合のメッセージ。
	MsgNetworkError = "Network error"
	// MsgLoginFailed はトークン発行失敗時にdetailがない場合のメッセージ。
	MsgLoginFailed = "Login failed"

	maxResponseSize = 4 << 20
)

// Credentials はリクエストに付与するBearerトークンの供給元。
// トークンが拒否された（401）場合はRevokeが呼ばれる。
type Credentials interface {
	Token() string
	Revoke(ctx context.Context) error
}

// Config はGatewayの設定。
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // 1秒あたりの送信数。0以下で制限なし
	RateBurst int
}

// Gateway はプロセス全体で共有するHTTPクライアント・送信レート制限・メトリクスを保持する。
// リクエスト単位の認証情報はClientで束ねる。
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// New はGatewayを生成する。HTTPトランスポートはOpenTelemetryで計装する。
func New(cfg Config, logger *slog.Logger, mc metrics.MetricsCollector) *Gateway {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Gateway{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "grocery-api " + r.Method + " " + metrics.EndpointLabel(r.URL.Path)
				}),
			),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		metrics: mc,
		logger:  logger,
	}
}

// Client はcredsを認証情報として使うClientを返す。credsがnilの場合は匿名で呼び出す。
func (g *Gateway) Client(creds Credentials) *Client {
	return &Client{gw: g, creds: creds}
}

// Client は1クライアント分の認証情報を束ねたAPIクライアント。
type Client struct {
	gw    *Gateway
	creds Credentials
}

// WithToken は指定トークンで認証するClientを返す。
// ログイン直後、セッション保存前にプロフィールを取得するために使う。
func (c *Client) WithToken(token string) *Client {
	return &Client{gw: c.gw, creds: staticToken(token)}
}

// Call はJSONボディでリクエストを送信し、2xxの場合はレスポンスをoutにデコードする。
// bodyとoutはnil可。2xx以外は*model.RequestErrorを返す。
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	token := ""
	if c.creds != nil {
		token = c.creds.Token()
	}

	return c.do(ctx, request{
		method:      method,
		endpoint:    endpoint,
		contentType: "application/json",
		body:        reader,
		token:       token,
		fallback:    MsgRequestFailed,
	}, out)
}

// PostForm はform-urlencodedでPOSTする（POST /token 用）。認証ヘッダーは付与しない。
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	return c.do(ctx, request{
		method:      http.MethodPost,
		endpoint:    endpoint,
		contentType: "application/x-www-form-urlencoded",
		body:        strings.NewReader(form.Encode()),
		fallback:    MsgLoginFailed,
	}, out)
}

type request struct {
	method      string
	endpoint    string
	contentType string
	body        io.Reader
	token       string
	fallback    string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	g := c.gw

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return &model.RequestError{Message: MsgNetworkError, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, g.baseURL+r.endpoint, r.body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	log := g.logger.With(
		slog.String("request_id", requestID),
		slog.String("method", r.method),
		slog.String("endpoint", r.endpoint),
	)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		g.metrics.RecordAPICall(r.method, r.endpoint, 0, elapsed)
		log.Warn("リモートAPIへのリクエストに失敗しました", slog.String("error", err.Error()))
		return &model.RequestError{Message: MsgNetworkError, Err: err}
	}
	defer resp.Body.Close()

	g.metrics.RecordAPICall(r.method, r.endpoint, resp.StatusCode, elapsed)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		log.Warn("レスポンスボディの読み取りに失敗しました", slog.String("error", err.Error()))
		return &model.RequestError{Message: MsgNetworkError, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(data, r.fallback)
		log.Warn("リモートAPIがエラーステータスを返しました",
			slog.Int("status", resp.StatusCode),
			slog.String("detail", msg),
			slog.Duration("duration", elapsed),
		)
		reqErr := &model.RequestError{Status: resp.StatusCode, Message: msg}
		if IsUnauthorized(reqErr) && r.token != "" && c.creds != nil {
			if rerr := c.creds.Revoke(ctx); rerr != nil {
				log.Error("拒否されたセッションの破棄に失敗しました", slog.String("error", rerr.Error()))
			} else {
				log.Info("トークン拒否によりセッションを破棄しました")
			}
		}
		return reqErr
	}

	log.Debug("リモートAPIへのリクエストが完了しました",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn("レスポンスボディのデコードに失敗しました", slog.String("error", err.Error()))
		return &model.RequestError{Message: MsgNetworkError, Err: err}
	}
	return nil
}

// errorMessage はエラーレスポンスのdetailからメッセージを取り出す。
// detailは文字列、またはバリデーションエラー（{msg}の配列）のいずれか。
// ボディがJSONとして解釈できない場合はMsgNetworkErrorを返す。
func errorMessage(body []byte, fallback string) string {
	if !json.Valid(body) {
		return MsgNetworkError
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return fallback
}

// IsUnauthorized はerrが401応答によるRequestErrorかを返す。
func IsUnauthorized(err error) bool {
	var re *model.RequestError
	return errors.As(err, &re) && re.Status == http.StatusUnauthorized
}

type staticToken string

func (t staticToken) Token() string                  { return string(t) }
func (t staticToken) Revoke(_ context.Context) error { return nil }
