package notify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/casavia/billing-service/internal/config"
	"github.com/casavia/billing-service/internal/domain/model"
	apperrors "github.com/casavia/billing-service/pkg/errors"
)

// ReceiptSender delivers a payment receipt to the paying customer.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, payment *model.PendingPayment, purchase *model.PurchaseRecord) error
}

// Mailer sends receipts over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewMailer creates an SMTP receipt sender from email configuration.
func NewMailer(cfg *config.EmailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:   cfg.FromAddress,
		logger: logger,
	}
}

var _ ReceiptSender = (*Mailer)(nil)

// SendReceipt emails a receipt for a succeeded payment. The recipient comes
// from the verified provider record, not caller input.
func (m *Mailer) SendReceipt(ctx context.Context, payment *model.PendingPayment, purchase *model.PurchaseRecord) error {
	if payment.CustomerEmail == "" {
		return fmt.Errorf("payment %d has no customer email", payment.ID)
	}

	amount := decimal.NewFromInt(payment.AmountMinor).Div(decimal.NewFromInt(100))

	body := fmt.Sprintf(
		"Thank you for your payment.\n\n"+
			"Reference: %s\n"+
			"Amount: %s %s\n"+
			"Plan: %s (%d days)\n",
		payment.Reference,
		amount.StringFixed(2),
		payment.Currency,
		purchase.Plan,
		purchase.DurationDays,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", payment.CustomerEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Payment receipt - %s", payment.Reference))
	msg.SetBody("text/plain", body)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("Failed to send receipt email",
			zap.String("reference", payment.Reference),
			zap.Error(err))
		return apperrors.Wrap(err, "failed to send receipt email")
	}

	m.logger.Info("Receipt email sent",
		zap.String("reference", payment.Reference),
		zap.String("to", payment.CustomerEmail))

	return nil
}
