// internal/handlers/billing/billing_handler.go
package billing

import (
	"net/http"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/billing"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	checkoutService *service.CheckoutService
}

func NewBillingHandler(checkoutService *service.CheckoutService) *BillingHandler {
	return &BillingHandler{checkoutService: checkoutService}
}

// CreateCheckout opens a Stripe session for a one-off credit
// purchase.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req domainbilling.CreateCheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados de compra inválidos", err.Error())
		return
	}

	result, err := h.checkoutService.CreateCreditCheckout(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar sessão de pagamento")
		return
	}

	response.OK(c, http.StatusCreated, result)
}

// RegisterPurchase records an out-of-band credit sale. Admin only.
func (h *BillingHandler) RegisterPurchase(c *gin.Context) {
	var req struct {
		IDUsuario          int64 `json:"id_usuario" binding:"required"`
		QuantidadeCreditos int   `json:"quantidade_creditos" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados de compra inválidos", err.Error())
		return
	}

	compra, err := h.checkoutService.RegisterPurchase(c.Request.Context(), req.IDUsuario, req.QuantidadeCreditos)
	if err != nil {
		response.FromError(c, err, "falha ao registrar compra")
		return
	}

	response.OK(c, http.StatusCreated, compra)
}

// ListPurchases shows the caller's purchase history.
func (h *BillingHandler) ListPurchases(c *gin.Context) {
	userID := middleware.MustUserID(c)

	compras, err := h.checkoutService.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "falha ao listar compras")
		return
	}

	response.OK(c, http.StatusOK, compras)
}
