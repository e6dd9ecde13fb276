package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tradedesk/internal/logger"
	symbolpkg "tradedesk/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// ErrOrderRejected marks orders the venue refused outright (filters,
// insufficient balance, bad parameters).
var ErrOrderRejected = errors.New("order rejected by venue")

// Credentials are the caller's venue API keys. Live orders are signed with
// these; the market data path never needs them.
type Credentials struct {
	APIKey    string
	APISecret string
}

func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APISecret) == ""
}

// OrderRequest is a market order in display-symbol terms.
type OrderRequest struct {
	Symbol   string
	Side     string // "buy" or "sell"
	Quantity decimal.Decimal
}

// OrderResult is what came back from the venue.
type OrderResult struct {
	VenueOrderID string
	Status       string
	ExecutedQty  decimal.Decimal
	AvgPrice     decimal.Decimal
}

// Venue forwards orders to the spot trading endpoints.
type Venue struct {
	cfg      Config
	resolver *symbolpkg.Resolver
}

func NewVenue(cfg Config, resolver *symbolpkg.Resolver) *Venue {
	if resolver == nil {
		resolver = symbolpkg.NewResolver()
	}
	return &Venue{cfg: cfg.withDefaults(), resolver: resolver}
}

func (v *Venue) clientFor(creds Credentials) (*binance.Client, error) {
	client := binance.NewClient(strings.TrimSpace(creds.APIKey), strings.TrimSpace(creds.APISecret))
	client.BaseURL = v.cfg.RESTBaseURL
	httpClient, err := newHTTPClient(v.cfg)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	return client, nil
}

// ValidateCredentials probes the account endpoint with the given keys.
func (v *Venue) ValidateCredentials(ctx context.Context, creds Credentials) error {
	if creds.Empty() {
		return fmt.Errorf("api credentials are required")
	}
	client, err := v.clientFor(creds)
	if err != nil {
		return err
	}
	if _, err := client.NewGetAccountService().Do(ctx); err != nil {
		return mapOrderError(err)
	}
	return nil
}

// PlaceOrder submits a market order. Rejections surface as ErrOrderRejected,
// connectivity failures as market.ErrUpstreamUnavailable, and deadline
// expiry keeps context.DeadlineExceeded in the chain.
func (v *Venue) PlaceOrder(ctx context.Context, creds Credentials, req OrderRequest) (OrderResult, error) {
	if creds.Empty() {
		return OrderResult{}, fmt.Errorf("api credentials are required")
	}
	display := symbolpkg.Normalize(req.Symbol)
	venueSym, ok := v.resolver.Venue(display)
	if !ok {
		return OrderResult{}, fmt.Errorf("unknown symbol %s: %w", display, ErrOrderRejected)
	}
	side, err := orderSide(req.Side)
	if err != nil {
		return OrderResult{}, err
	}
	if req.Quantity.Sign() <= 0 {
		return OrderResult{}, fmt.Errorf("quantity must be positive")
	}
	client, err := v.clientFor(creds)
	if err != nil {
		return OrderResult{}, err
	}
	res, err := client.NewCreateOrderService().
		Symbol(venueSym).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(req.Quantity.String()).
		Do(ctx)
	if err != nil {
		return OrderResult{}, mapOrderError(err)
	}
	result := OrderResult{
		VenueOrderID: strconv.FormatInt(res.OrderID, 10),
		Status:       string(res.Status),
		ExecutedQty:  dec(res.ExecutedQuantity),
	}
	quote := dec(res.CummulativeQuoteQuantity)
	if result.ExecutedQty.Sign() > 0 && quote.Sign() > 0 {
		result.AvgPrice = quote.Div(result.ExecutedQty)
	}
	if res.Status == binance.OrderStatusTypeRejected || res.Status == binance.OrderStatusTypeExpired {
		logger.Warnf("[binance] order %s %s %s came back %s", req.Side, display, req.Quantity, res.Status)
		return result, fmt.Errorf("status %s: %w", res.Status, ErrOrderRejected)
	}
	return result, nil
}

func orderSide(side string) (binance.SideType, error) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy":
		return binance.SideTypeBuy, nil
	case "sell":
		return binance.SideTypeSell, nil
	default:
		return "", fmt.Errorf("invalid order side %q", side)
	}
}

// order rejection codes from the venue
const (
	codeNewOrderRejected = -2010
	codeCancelRejected   = -2011
	codeFilterFailure    = -1013
	codeBadAPIKey        = -2014
	codeBadSignature     = -1022
)

func mapOrderError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeNewOrderRejected, codeCancelRejected, codeFilterFailure, codeInvalidSymbol, codeBadSymbol:
			return fmt.Errorf("venue error %d %s: %w", apiErr.Code, apiErr.Message, ErrOrderRejected)
		case codeBadAPIKey, codeBadSignature:
			return fmt.Errorf("venue error %d %s: invalid api credentials", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("venue error %d: %s", apiErr.Code, apiErr.Message)
	}
	return err
}
