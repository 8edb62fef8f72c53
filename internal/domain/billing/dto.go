// internal/domain/billing/dto.go
package billing

type CreateCheckoutInput struct {
	QuantidadeCreditos int    `json:"quantidade_creditos" binding:"required"`
	SuccessURL         string `json:"success_url" binding:"required"`
	CancelURL          string `json:"cancel_url" binding:"required"`
}

type CheckoutResponse struct {
	SessionID    string `json:"session_id"`
	URL          string `json:"url"`
	LocalOrderID string `json:"local_order_id"`
}

type PurchaseCreditsInput struct {
	QuantidadeCreditos int `json:"quantidade_creditos" binding:"required"`
}
