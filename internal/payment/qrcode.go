// Package payment は注文の支払いQRコードの取得と画像の解決を提供する。
package payment

import (
	"context"
	"log/slog"

	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/security"
)

// DefaultInstructions はサーバーが支払い手順を返さない場合の文言。
const DefaultInstructions = "Scan this QR code with any UPI app to make payment"

// API は支払いQRコードの取得に使うリモートAPI操作。*gateway.Client が実装する。
type API interface {
	PaymentQR(ctx context.Context, orderID int64) (*model.PaymentQR, error)
}

// SessionReader は現在のセッションを返す。*session.Store が実装する。
type SessionReader interface {
	Get() model.Session
}

// Service は1クライアント分の支払いQRコード操作。
type Service struct {
	api       API
	session   SessionReader
	sanitizer security.TextSanitizer
	images    *ImageFetcher
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(api API, session SessionReader, sanitizer security.TextSanitizer, images *ImageFetcher, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		session:   session,
		sanitizer: sanitizer,
		images:    images,
		logger:    logger,
	}
}

// QRCode は注文の支払いQRコード情報を取得する。ログインが必要。
// 支払い手順の文言はHTMLを除去して返す。
func (s *Service) QRCode(ctx context.Context, orderID int64) (*model.PaymentQR, error) {
	if !s.session.Get().Authenticated() {
		return nil, model.NewLoginRequiredError("view payment details")
	}

	qr, err := s.api.PaymentQR(ctx, orderID)
	if err != nil {
		return nil, err
	}

	qr.OrderNumber = s.sanitizer.Text(qr.OrderNumber)
	qr.Instructions = s.sanitizer.Text(qr.Instructions)
	if qr.Instructions == "" {
		qr.Instructions = DefaultInstructions
	}
	return qr, nil
}

// QRImage は注文の支払いQRコード画像を取得する。
func (s *Service) QRImage(ctx context.Context, orderID int64) (*Image, error) {
	qr, err := s.QRCode(ctx, orderID)
	if err != nil {
		return nil, err
	}

	img, err := s.images.Fetch(ctx, qr.Image)
	if err != nil {
		s.logger.Warn("QRコード画像の取得に失敗しました",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return img, nil
}
