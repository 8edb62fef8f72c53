// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"
	"strconv"

	"compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Subscribe opens the checkout that will activate a new subscription.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req struct {
		subscription.SubscribeInput
		SuccessURL string `json:"success_url" binding:"required"`
		CancelURL  string `json:"cancel_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados de assinatura inválidos", err.Error())
		return
	}

	result, err := h.subscriptionService.Subscribe(c.Request.Context(), userID, &req.SubscribeInput, req.SuccessURL, req.CancelURL)
	if err != nil {
		response.FromError(c, err, "falha ao iniciar assinatura")
		return
	}

	response.OK(c, http.StatusCreated, result)
}

// Detail shows the caller's subscription with plan and members.
func (h *SubscriptionHandler) Detail(c *gin.Context) {
	userID := middleware.MustUserID(c)

	result, err := h.subscriptionService.Detail(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "assinatura não encontrada")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// ListMembers lists the accounts linked to the caller's subscription.
func (h *SubscriptionHandler) ListMembers(c *gin.Context) {
	userID := middleware.MustUserID(c)

	result, err := h.subscriptionService.Detail(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "assinatura não encontrada")
		return
	}

	response.OK(c, http.StatusOK, result.Members)
}

// AddMember links another user to the caller's subscription.
func (h *SubscriptionHandler) AddMember(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req subscription.AddMemberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "email inválido", err.Error())
		return
	}

	member, err := h.subscriptionService.AddMember(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err, "falha ao adicionar conta")
		return
	}

	response.OK(c, http.StatusCreated, member)
}

// RemoveMember unlinks a member account.
func (h *SubscriptionHandler) RemoveMember(c *gin.Context) {
	userID := middleware.MustUserID(c)

	memberID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id inválido")
		return
	}

	if err := h.subscriptionService.RemoveMember(c.Request.Context(), userID, memberID); err != nil {
		response.FromError(c, err, "falha ao remover conta")
		return
	}

	response.OK(c, http.StatusOK, gin.H{"removido": memberID})
}

// Transfer moves credits to another account of the same subscription.
func (h *SubscriptionHandler) Transfer(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req subscription.TransferInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "transferência inválida", err.Error())
		return
	}

	if err := h.subscriptionService.Transfer(c.Request.Context(), userID, &req); err != nil {
		response.FromError(c, err, "falha ao transferir créditos")
		return
	}

	response.OK(c, http.StatusOK, gin.H{
		"quantidade":         req.Amount,
		"id_usuario_destino": req.TargetUserID,
	})
}

// Cancel cancels a subscription, on Stripe first.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "não autenticado")
		return
	}

	var req struct {
		IDAssinatura int64  `json:"id_assinatura"`
		Motivo       string `json:"motivo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados de cancelamento inválidos", err.Error())
		return
	}

	subscriptionID := req.IDAssinatura
	if subscriptionID == 0 {
		detail, err := h.subscriptionService.Detail(c.Request.Context(), caller.ID)
		if err != nil {
			response.FromError(c, err, "assinatura não encontrada")
			return
		}
		subscriptionID = detail.Subscription.ID
	}

	if err := h.subscriptionService.Cancel(c.Request.Context(), caller, subscriptionID, req.Motivo); err != nil {
		response.FromError(c, err, "falha ao cancelar assinatura")
		return
	}

	response.OK(c, http.StatusOK, gin.H{"cancelada": subscriptionID})
}
