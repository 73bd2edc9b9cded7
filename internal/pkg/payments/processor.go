package payments

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

	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// Client talks to the payment processor's REST API. It is used on the
// checkout-initiation path to create sessions and on the webhook path to
// re-fetch sessions whose completion payload is missing fields.
type Client struct {
	SecretKey  string
	APIBaseURL string
	SuccessURL string
	CancelURL  string

	HTTPClient *http.Client
}

// CreateSessionInput carries everything a new checkout session needs. The
// metadata written here is what completion reads back from the webhook.
type CreateSessionInput struct {
	BuyerID     uint
	BeatUUID    string
	BeatTitle   string
	LicenseID   uint
	LicenseName string
	AmountCents int64
	Currency    string
	Exclusive   bool
}

// NewClient builds a processor client from the payments configuration.
func NewClient(cfg config.Payments) *Client {
	return &Client{
		SecretKey:  strings.TrimSpace(cfg.SecretKey),
		APIBaseURL: strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
		SuccessURL: strings.TrimSpace(cfg.SuccessURL),
		CancelURL:  strings.TrimSpace(cfg.CancelURL),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession opens a hosted checkout session for one beat.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*CheckoutSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errs.New("PAYMENT_SECRET_KEY is not configured")
	}
	if in.BeatUUID == "" || in.BuyerID == 0 || in.LicenseID == 0 {
		return nil, errs.New("buyer, beat and license are required")
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "eur"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("client_reference_id", strconv.FormatUint(uint64(in.BuyerID), 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", in.BeatTitle)
	form.Set("metadata["+MetaBeatUUID+"]", in.BeatUUID)
	form.Set("metadata["+MetaLicenseID+"]", strconv.FormatUint(uint64(in.LicenseID), 10))
	form.Set("metadata["+MetaLicenseName+"]", in.LicenseName)
	form.Set("metadata["+MetaExclusive+"]", strconv.FormatBool(in.Exclusive))
	form.Set("metadata["+MetaUserID+"]", strconv.FormatUint(uint64(in.BuyerID), 10))

	body, err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Wrap(err, "decode checkout session response")
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errs.New("checkout session response missing id")
	}
	return &out, nil
}

// RetrieveCheckoutSession fetches the current session state from the
// processor, used when the webhook payload alone is not enough.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, errs.New("session id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Wrap(err, "decode checkout session response")
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errs.New("checkout session response missing id")
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("processor request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
