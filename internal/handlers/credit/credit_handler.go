// internal/handlers/credit/credit_handler.go
package credit

import (
	"context"
	"net/http"

	"compatlab-service/internal/domain/user"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// BalanceService is the slice of the ledger the handler needs.
type BalanceService interface {
	BalanceOf(ctx context.Context, userID int64) (int, *user.User, error)
	Adjust(ctx context.Context, operatorID int64, in *user.AdjustBalanceInput) (int, error)
}

type CreditHandler struct {
	ledgerService BalanceService
}

func NewCreditHandler(ledgerService BalanceService) *CreditHandler {
	return &CreditHandler{ledgerService: ledgerService}
}

// GetBalance returns the caller's computed credit balance.
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID := middleware.MustUserID(c)

	saldo, u, err := h.ledgerService.BalanceOf(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "falha ao calcular saldo")
		return
	}

	response.OK(c, http.StatusOK, user.BalanceResponse{
		SaldoEmCreditos: saldo,
		User:            user.UserBrief{ID: u.ID, Nome: u.Nome},
	})
}

// AdjustBalance applies an operator add/subtract/set on a user's
// balance. Any user may add or subtract on their own balance; touching
// another user's balance or using set requires an administrator.
func (h *CreditHandler) AdjustBalance(c *gin.Context) {
	operator, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "token de acesso ausente")
		return
	}

	var req user.AdjustBalanceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "ajuste inválido", err.Error())
		return
	}

	touchesOther := req.TargetUserID != 0 && req.TargetUserID != operator.ID
	if (touchesOther || req.Operation == user.OpSet) && !operator.IsAdmin() {
		response.Error(c, http.StatusForbidden, "acesso restrito a administradores")
		return
	}

	saldo, err := h.ledgerService.Adjust(c.Request.Context(), operator.ID, &req)
	if err != nil {
		response.FromError(c, err, "falha ao ajustar saldo")
		return
	}

	response.OK(c, http.StatusOK, gin.H{"saldo_em_creditos": saldo})
}
