package dto

// GatewayWebhook is the normalized event body payment gateways post to
// /api/webhooks/:gateway. Amounts are minor currency units.
type GatewayWebhook struct {
	ID    string       `json:"id" validate:"required"`
	Type  string       `json:"type" validate:"required"`
	Event GatewayEvent `json:"data"`
}

type GatewayEvent struct {
	MembershipID          string `json:"membership_id"`
	PaymentID             string `json:"payment_id"`
	GatewayCustomerID     string `json:"customer_id"`
	GatewaySubscriptionID string `json:"subscription_id"`
	TransactionID         string `json:"transaction_id"`
	Amount                int64  `json:"amount"`
	ExpiresAtMs           int64  `json:"expires_at_ms"`
}
