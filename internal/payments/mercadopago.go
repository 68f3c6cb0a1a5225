package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/rs/zerolog"

	"github.com/nurpe/bidworks/internal/model"
)

var ErrMissingAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

// MercadoPagoGateway announces payment obligations to Mercado Pago. The
// provider's webhook reports the outcome back through the payments handler;
// the engine never sees a card. Mock mode skips the provider entirely for
// local runs and tests.
type MercadoPagoGateway struct {
	client   payment.Client
	mockMode bool
	log      zerolog.Logger
}

func NewMercadoPagoGateway(accessToken string, mockMode bool, log zerolog.Logger) (*MercadoPagoGateway, error) {
	if mockMode {
		log.Info().Msg("payment gateway running in mock mode")
		return &MercadoPagoGateway{mockMode: true, log: log}, nil
	}
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}

	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}
	return &MercadoPagoGateway{client: payment.NewClient(cfg), log: log}, nil
}

func (g *MercadoPagoGateway) AnnounceObligation(ctx context.Context, obligation model.PaymentObligation) error {
	if g.mockMode {
		g.log.Info().
			Str("bid_id", obligation.BidID.String()).
			Str("type", string(obligation.Type)).
			Float64("amount", obligation.Amount).
			Msg("mock gateway: obligation announced")
		return nil
	}

	resp, err := g.client.Create(ctx, payment.Request{
		TransactionAmount: obligation.Amount,
		Description:       fmt.Sprintf("%s milestone for job %s", obligation.Type, obligation.JobID),
		ExternalReference: fmt.Sprintf("%s:%s", obligation.BidID, obligation.Type),
	})
	if err != nil {
		return fmt.Errorf("mercado pago create: %w", err)
	}

	g.log.Info().
		Str("bid_id", obligation.BidID.String()).
		Str("type", string(obligation.Type)).
		Int("provider_payment_id", resp.ID).
		Str("provider_status", resp.Status).
		Msg("obligation announced to gateway")
	return nil
}
