// internal/handlers/analysis/analysis_handler.go
package analysis

import (
	"net/http"
	"strconv"

	"compatlab-service/internal/domain/analysis"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/analysis"

	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// Create opens an analysis request and debits its cost.
func (h *AnalysisHandler) Create(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req analysis.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados da solicitação inválidos", err.Error())
		return
	}

	result, err := h.analysisService.CreateRequest(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar solicitação")
		return
	}

	response.OK(c, http.StatusCreated, result)
}

// List shows the caller's requests; enterprise accounts see the whole
// subscription's.
func (h *AnalysisHandler) List(c *gin.Context) {
	userID := middleware.MustUserID(c)

	result, err := h.analysisService.ListVisible(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "falha ao listar solicitações")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// Get returns one request; owners and admins only. The literal path
// /solicitacoes/todas shares this wildcard and routes to the admin
// queue.
func (h *AnalysisHandler) Get(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)

	if c.Param("id") == "todas" {
		if !caller.IsAdmin() {
			response.Error(c, http.StatusForbidden, "acesso restrito a administradores")
			return
		}
		h.Queue(c)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id inválido")
		return
	}

	result, err := h.analysisService.Get(c.Request.Context(), caller.ID, caller.IsAdmin(), id)
	if err != nil {
		response.FromError(c, err, "solicitação não encontrada")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// Queue lists open requests by plan priority. Admin only.
func (h *AnalysisHandler) Queue(c *gin.Context) {
	result, err := h.analysisService.Queue(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "falha ao listar fila")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// UpdateStatus moves a request between em_andamento and finalizado.
// Admin only.
func (h *AnalysisHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id inválido")
		return
	}

	var req analysis.UpdateStatusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "status inválido", err.Error())
		return
	}

	result, err := h.analysisService.SetStatus(c.Request.Context(), id, analysis.RequestStatus(req.Status))
	if err != nil {
		response.FromError(c, err, "falha ao atualizar solicitação")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// Vincular attaches the result and finalizes the request. Admin only.
func (h *AnalysisHandler) Vincular(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "id inválido")
		return
	}

	var req analysis.ConcludeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "resultado inválido", err.Error())
		return
	}

	result, err := h.analysisService.Conclude(c.Request.Context(), id, &req)
	if err != nil {
		response.FromError(c, err, "falha ao concluir solicitação")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// --- Products ---

func (h *AnalysisHandler) ListProdutos(c *gin.Context) {
	result, err := h.analysisService.ListProdutos(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "falha ao listar produtos")
		return
	}
	response.OK(c, http.StatusOK, result)
}

func (h *AnalysisHandler) CreateProduto(c *gin.Context) {
	var req analysis.CreateProdutoInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados do produto inválidos", err.Error())
		return
	}

	result, err := h.analysisService.CreateProduto(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar produto")
		return
	}
	response.OK(c, http.StatusCreated, result)
}
