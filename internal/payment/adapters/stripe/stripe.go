// Package stripe implements outbound Connect transfers against the
// Stripe HTTP API.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/storynest/storynest/internal/payment/domain"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	callTimeout    = 10 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(secretKey string) (paymentdomain.TransferAdapter, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: callTimeout},
	}, nil
}

type Adapter struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func (a *Adapter) Provider() string {
	return "stripe"
}

func (a *Adapter) CreateTransfer(ctx context.Context, req paymentdomain.TransferRequest) (*paymentdomain.Transfer, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return nil, paymentdomain.ErrMissingDestination
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(strings.TrimSpace(req.Currency)))
	form.Set("destination", req.Destination)
	form.Set("metadata[payout_period_id]", req.Metadata.PayoutPeriodID)
	form.Set("metadata[statement_id]", req.Metadata.StatementID)
	form.Set("metadata[publisher_id]", req.Metadata.PublisherID)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/transfers", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Transfers are safe to retry under the same key on our side; the
	// statement id makes the call idempotent at Stripe.
	httpReq.Header.Set("Idempotency-Key", "transfer-"+req.Metadata.StatementID)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrTransferFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", paymentdomain.ErrTransferFailed, parseErrorMessage(body, resp.StatusCode))
	}

	var transfer stripeTransfer
	if err := json.Unmarshal(body, &transfer); err != nil {
		return nil, fmt.Errorf("%w: malformed response", paymentdomain.ErrTransferFailed)
	}
	if strings.TrimSpace(transfer.ID) == "" {
		return nil, fmt.Errorf("%w: missing transfer id", paymentdomain.ErrTransferFailed)
	}

	return &paymentdomain.Transfer{ID: transfer.ID}, nil
}

type stripeTransfer struct {
	ID string `json:"id"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func parseErrorMessage(body []byte, status int) string {
	var parsed stripeError
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("http status %d", status)
}
