package constants

// Static route constants
const (
	APIRoute          = "/api"
	APIV1Route        = "/v1"
	PaymentWebhook    = "/webhooks/payment"
	InternalRoute     = "/internal"
	ContractsCallback = "/contracts/callback"
	// Share path without leading slash for URL construction
	SharePath = "s"
)
