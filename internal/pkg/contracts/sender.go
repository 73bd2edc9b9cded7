package contracts

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/mail"
)

// EmailSender delivers the license contract email for completed purchases.
// Delivery runs under the send lease, so concurrent jobs for the same
// purchase collapse into one send.
type EmailSender struct {
	db    *gorm.DB
	lease *EmailLease
}

// NewEmailSender builds a sender on the given DB handle and lease.
func NewEmailSender(db *gorm.DB, lease *EmailLease) *EmailSender {
	return &EmailSender{db: db, lease: lease}
}

// Deliver sends the contract email for one purchase. It returns nil when
// the mail went out, when another worker holds the claim, or when the mail
// already went out earlier. A returned error means the attempt failed and
// the lease was released for a retry.
func (s *EmailSender) Deliver(purchaseID uint) error {
	claimed, err := s.lease.Claim(purchaseID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debugf("[Contracts] Contract email for purchase %d already sent or in flight", purchaseID)
		return nil
	}

	var purchase models.BeatPurchase
	err = s.db.Preload("Buyer").Preload("Beat").Preload("License").First(&purchase, purchaseID).Error
	if err != nil {
		s.releaseAfterFailure(purchaseID)
		if errs.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Contracts] Contract email job for unknown purchase %d", purchaseID)
			return nil
		}
		return errs.Wrap(err, "load purchase for contract email")
	}

	if purchase.ContractPath == nil || strings.TrimSpace(*purchase.ContractPath) == "" {
		s.releaseAfterFailure(purchaseID)
		return errs.Newf("contract for purchase %d is not rendered yet", purchaseID)
	}
	if strings.TrimSpace(purchase.Buyer.Email) == "" {
		// No address to send to; never retryable.
		log.Errorf("[Contracts] Buyer %d has no email address, dropping contract mail for purchase %d", purchase.BuyerID, purchaseID)
		return s.lease.MarkSent(purchaseID)
	}

	subject, body := contractEmailContent(&purchase)
	if err := mail.SendMail(purchase.Buyer.Email, subject, body); err != nil {
		s.releaseAfterFailure(purchaseID)
		return errs.Wrap(err, "send contract email")
	}

	if err := s.lease.MarkSent(purchaseID); err != nil {
		return err
	}
	log.Infof("[Contracts] Sent contract email for purchase %d to buyer %d", purchaseID, purchase.BuyerID)
	return nil
}

func (s *EmailSender) releaseAfterFailure(purchaseID uint) {
	if err := s.lease.MarkFailed(purchaseID); err != nil {
		log.Warnf("[Contracts] Could not release contract email lease for purchase %d: %v", purchaseID, err)
	}
}

func contractEmailContent(p *models.BeatPurchase) (string, string) {
	subject := fmt.Sprintf("Your license for %q", p.Beat.Title)

	var b strings.Builder
	b.WriteString("<h2>Thanks for your purchase!</h2>")
	b.WriteString(fmt.Sprintf("<p>Hi %s,</p>", p.Buyer.Name))
	b.WriteString(fmt.Sprintf("<p>your <strong>%s</strong> license for <strong>%s</strong> is attached to your account.</p>",
		p.License.Name, p.Beat.Title))
	b.WriteString(fmt.Sprintf("<p>Amount: %.2f %s<br>Order reference: %s</p>",
		float64(p.AmountCents)/100, strings.ToUpper(p.Currency), p.UUID))
	b.WriteString(fmt.Sprintf("<p>The signed contract document is available in your downloads: %s</p>", *p.ContractPath))
	b.WriteString("<p>Happy producing!<br>The BeatMarkt team</p>")
	return subject, b.String()
}
