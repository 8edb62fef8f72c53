// internal/handlers/dashboard/dashboard_handler.go
package dashboard

import (
	"net/http"

	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/dashboard"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
}

func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Me returns the caller's activity summary.
func (h *DashboardHandler) Me(c *gin.Context) {
	userID := middleware.MustUserID(c)

	result, err := h.dashboardService.Me(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "falha ao montar painel")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// Completo returns the administrative dashboard. Admin only.
func (h *DashboardHandler) Completo(c *gin.Context) {
	result, err := h.dashboardService.Admin(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "falha ao montar painel administrativo")
		return
	}

	response.OK(c, http.StatusOK, result)
}
