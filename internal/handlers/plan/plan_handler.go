// internal/handlers/plan/plan_handler.go
package plan

import (
	"net/http"
	"strconv"

	"compatlab-service/internal/domain/plan"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/subscription"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.planService.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "falha ao listar planos")
		return
	}
	response.OK(c, http.StatusOK, plans)
}

func (h *PlanHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id inválido")
		return
	}

	p, err := h.planService.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err, "plano não encontrado")
		return
	}
	response.OK(c, http.StatusOK, p)
}

// Create adds a plan. Admin only (enforced by the route group).
func (h *PlanHandler) Create(c *gin.Context) {
	var req plan.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados do plano inválidos", err.Error())
		return
	}

	p, err := h.planService.Create(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar plano")
		return
	}
	response.OK(c, http.StatusCreated, p)
}
