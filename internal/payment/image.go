package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/freshmart/internal/security"
)

const (
	defaultImageTimeout = 10 * time.Second
	// maxImageSize はQRコード画像として受け付ける最大サイズ。
	maxImageSize = 2 << 20
)

// ErrUnsupportedImage はdata: URIでもhttp(s) URLでもない画像参照の場合のエラー。
var ErrUnsupportedImage = errors.New("unsupported image reference")

// ErrImageUnavailable は参照先の画像を取得・デコードできなかった場合のエラー。
// 拒否されたURL、ダウンロードの失敗、壊れたdata: URIを含む。
var ErrImageUnavailable = errors.New("qr image unavailable")

// Image はデコード済みの画像。
type Image struct {
	ContentType string
	Data        []byte
}

// ImageFetcher はQRコード画像をdata: URIからデコード、またはSSRF対策済みクライアントで取得する。
// プロセス全体で共有する。
type ImageFetcher struct {
	guard  security.SSRFGuardService
	client *http.Client
	logger *slog.Logger
}

// NewImageFetcher はImageFetcherを生成する。timeoutが0以下の場合は10秒とする。
func NewImageFetcher(guard security.SSRFGuardService, timeout time.Duration, logger *slog.Logger) *ImageFetcher {
	if timeout <= 0 {
		timeout = defaultImageTimeout
	}
	return &ImageFetcher{
		guard:  guard,
		client: guard.NewSafeClient(timeout),
		logger: logger,
	}
}

// Fetch は画像参照を解決する。
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.download(ctx, ref)
	default:
		return nil, ErrUnsupportedImage
	}
}

func (f *ImageFetcher) download(ctx context.Context, rawURL string) (*Image, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("QRコード画像URLの検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: image URL rejected: %w", ErrImageUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build image request: %w", ErrImageUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download image: %w", ErrImageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected image status: %d", ErrImageUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image: %w", ErrImageUnavailable, err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrImageUnavailable, maxImageSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedImage, contentType)
	}
	return &Image{ContentType: contentType, Data: data}, nil
}

// decodeDataURI は "data:<mediatype>[;base64],<data>" を解析する。
func decodeDataURI(ref string) (*Image, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrUnsupportedImage)
	}

	isBase64 := strings.HasSuffix(header, ";base64")
	mediaType := strings.TrimSuffix(header, ";base64")
	if mediaType == "" {
		mediaType = "text/plain"
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: media type %q", ErrUnsupportedImage, mediaType)
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode data URI: %w", ErrImageUnavailable, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode data URI: %w", ErrImageUnavailable, err)
		}
		data = []byte(unescaped)
	}

	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrImageUnavailable, maxImageSize)
	}
	return &Image{ContentType: mediaType, Data: data}, nil
}
