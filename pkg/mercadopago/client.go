package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sdkconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/feriando/feriando-backend/pkg/config"
	"github.com/feriando/feriando-backend/pkg/enums"
	"github.com/feriando/feriando-backend/pkg/logger"
)

var errAccessTokenRequired = errors.New("mercadopago access token is required")

// IntentItem is one line of a checkout preference.
type IntentItem struct {
	Title      string
	Quantity   int
	PriceCents int
}

// IntentRequest carries everything needed to open a hosted checkout.
type IntentRequest struct {
	OrderID string
	Items   []IntentItem
}

// Intent is the hosted checkout handle returned by the processor.
type Intent struct {
	PreferenceID string
	CheckoutURL  string
}

// PaymentInfo is the authoritative state of a payment, fetched by id.
type PaymentInfo struct {
	PaymentID string
	OrderID   string
	Status    enums.PaymentStatus
}

// Gateway is the surface the reconciler and checkout depend on.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	FetchStatus(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

// Client wraps the MercadoPago SDK clients plus request defaults.
type Client struct {
	preferences preference.Client
	payments    payment.Client
	cfg         config.MercadoPagoConfig
}

// NewClient initializes the SDK once with the configured credentials.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	sdkCfg, err := sdkconfig.New(token)
	if err != nil {
		return nil, fmt.Errorf("initializing mercadopago sdk: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "mercadopago client initialized")
	}

	return &Client{
		preferences: preference.NewClient(sdkCfg),
		payments:    payment.NewClient(sdkCfg),
		cfg:         cfg,
	}, nil
}

// CreateIntent opens a hosted checkout preference for the order. The order id
// rides along as external_reference so webhook handling can correlate the
// payment back to the ledger.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.OrderID == "" {
		return nil, errors.New("order id is required")
	}
	if len(req.Items) == 0 {
		return nil, errors.New("at least one item is required")
	}

	items := make([]preference.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, preference.ItemRequest{
			Title:      item.Title,
			Quantity:   item.Quantity,
			CurrencyID: "ARS",
			UnitPrice:  centsToAmount(item.PriceCents),
		})
	}

	prefReq := preference.Request{
		Items:             items,
		ExternalReference: req.OrderID,
	}
	if c.cfg.NotificationURL != "" {
		prefReq.NotificationURL = c.cfg.NotificationURL
	}
	if c.cfg.BackURLBase != "" {
		prefReq.BackURLs = &preference.BackURLsRequest{
			Success: c.cfg.BackURLBase + "/checkout/success",
			Pending: c.cfg.BackURLBase + "/checkout/pending",
			Failure: c.cfg.BackURLBase + "/checkout/failure",
		}
	}

	resp, err := c.withTimeoutPreference(ctx, prefReq)
	if err != nil {
		return nil, fmt.Errorf("creating preference: %w", err)
	}

	return &Intent{
		PreferenceID: resp.ID,
		CheckoutURL:  resp.InitPoint,
	}, nil
}

// FetchStatus pulls the payment by id and normalizes its status. Webhook
// payloads are treated as a hint only; this fetch is the source of truth.
func (c *Client) FetchStatus(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil {
		return nil, fmt.Errorf("invalid payment id %q", paymentID)
	}

	resp, err := c.withTimeoutPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching payment %s: %w", paymentID, err)
	}

	return &PaymentInfo{
		PaymentID: paymentID,
		OrderID:   resp.ExternalReference,
		Status:    NormalizeStatus(resp.Status),
	}, nil
}

// withTimeoutPreference bounds the call and retries once on a transport error.
func (c *Client) withTimeoutPreference(ctx context.Context, req preference.Request) (*preference.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.preferences.Create(callCtx, req)
	if err == nil || ctx.Err() != nil || !isTransient(err) {
		return resp, err
	}

	retryCtx, retryCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer retryCancel()
	return c.preferences.Create(retryCtx, req)
}

func (c *Client) withTimeoutPayment(ctx context.Context, id int) (*payment.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.payments.Get(callCtx, id)
	if err == nil || ctx.Err() != nil || !isTransient(err) {
		return resp, err
	}

	retryCtx, retryCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer retryCancel()
	return c.payments.Get(retryCtx, id)
}

// isTransient reports whether the error came from the transport rather than
// an API response. The processor answered business rejections and validation
// failures itself; repeating those calls can only repeat the answer.
func isTransient(err error) bool {
	var respErr *mperror.ResponseError
	return !errors.As(err, &respErr)
}

// NormalizeStatus maps raw processor statuses onto the internal enum. Unknown
// values are treated as rejected so an unexpected processor change can never
// mark an order paid.
func NormalizeStatus(raw string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return enums.PaymentStatusApproved
	case "pending":
		return enums.PaymentStatusPending
	case "in_process", "authorized":
		return enums.PaymentStatusInProcess
	default:
		return enums.PaymentStatusRejected
	}
}

func centsToAmount(cents int) float64 {
	return float64(cents) / 100
}
