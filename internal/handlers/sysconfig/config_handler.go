// internal/handlers/sysconfig/config_handler.go
package sysconfig

import (
	"net/http"

	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/sysconfig"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	configService *service.ConfigService
}

func NewConfigHandler(configService *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{configService: configService}
}

// Current returns the vigente pricing config.
func (h *ConfigHandler) Current(c *gin.Context) {
	cfg, err := h.configService.Current(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "configuração não encontrada")
		return
	}
	response.OK(c, http.StatusOK, cfg)
}

// Preco exposes just the current credit price, no auth required.
func (h *ConfigHandler) Preco(c *gin.Context) {
	cfg, err := h.configService.Current(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "configuração não encontrada")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"preco_do_credito": cfg.PrecoDoCredito})
}

// History lists every config ever installed, newest first. Admin only.
func (h *ConfigHandler) History(c *gin.Context) {
	configs, err := h.configService.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "falha ao listar configurações")
		return
	}
	response.OK(c, http.StatusOK, configs)
}

// Create installs a new current config. Admin only.
func (h *ConfigHandler) Create(c *gin.Context) {
	var req sysconfig.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "configuração inválida", err.Error())
		return
	}

	cfg, err := h.configService.Create(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar configuração")
		return
	}
	response.OK(c, http.StatusCreated, cfg)
}
