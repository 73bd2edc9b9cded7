package jobqueue

import (
	"context"
	"fmt"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/config"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/contracts"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
)

// EnqueueContractEmail schedules contract email delivery for a purchase.
// The retry budget comes from CONTRACT_EMAIL_MAX_ATTEMPTS; attempts beyond
// the first are retries.
func (q *Queue) EnqueueContractEmail(purchaseID uint, purchaseUUID string) (*Job, error) {
	payload := ContractEmailJobPayload{
		PurchaseID:   purchaseID,
		PurchaseUUID: purchaseUUID,
	}
	maxRetries := config.Get().Contracts.EmailMaxAttempts - 1
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return q.EnqueueJobWithRetries(JobTypeContractEmail, payload.ToMap(), maxRetries)
}

// processContractEmailJob delivers the license contract email for one
// purchase. The send lease inside the sender makes a retried or duplicated
// job collapse into a single delivery.
func (q *Queue) processContractEmailJob(ctx context.Context, job *Job) error {
	_ = ctx

	payload, err := ContractEmailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid contract email payload: %w", err)
	}
	if payload.PurchaseID == 0 {
		return fmt.Errorf("contract email payload without purchase id")
	}

	db := database.GetDB()
	lease := contracts.NewEmailLease(db, config.Get().Contracts.EmailLeaseTimeout)
	sender := contracts.NewEmailSender(db, lease)
	return sender.Deliver(payload.PurchaseID)
}
