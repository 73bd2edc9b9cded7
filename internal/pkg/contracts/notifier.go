// Package contracts integrates the external contract-rendering service and
// owns delivery of the license contract email. The render hop is
// fire-and-forget; the email hop is guarded by a send lease on the purchase
// row so retries cannot double-send.
package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
)

// Notifier tells the contract service about completed purchases so it can
// render the license PDF and call back with the document path.
type Notifier struct {
	serviceURL string
	token      string
	timeout    time.Duration
	client     *http.Client
}

// NewNotifier builds a notifier from the contracts configuration. An empty
// service URL yields a notifier that logs and does nothing.
func NewNotifier(cfg config.Contracts) *Notifier {
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Notifier{
		serviceURL: cfg.ServiceURL,
		token:      cfg.ServiceToken,
		timeout:    timeout,
		client:     &http.Client{Timeout: timeout},
	}
}

// PurchaseCompletedAsync notifies the contract service in the background.
// Failures are logged and swallowed; the purchase is already committed and
// a missed render can be replayed by an operator.
func (n *Notifier) PurchaseCompletedAsync(purchaseID uint) {
	if n.serviceURL == "" {
		log.Debugf("[Contracts] No contract service configured, skipping notify for purchase %d", purchaseID)
		return
	}
	go func() {
		if err := n.notify(purchaseID); err != nil {
			log.Warnf("[Contracts] Completion notify for purchase %d failed: %v", purchaseID, err)
			return
		}
		log.Infof("[Contracts] Notified contract service about purchase %d", purchaseID)
	}()
}

func (n *Notifier) notify(purchaseID uint) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	// The contract service treats purchase ids as opaque strings.
	payload, err := json.Marshal(map[string]string{
		"purchase_id": strconv.FormatUint(uint64(purchaseID), 10),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serviceURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("contract service returned status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
