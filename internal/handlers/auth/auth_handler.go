// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"compatlab-service/internal/domain/user"
	"compatlab-service/internal/middleware"
	"compatlab-service/internal/pkg/response"
	service "compatlab-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req user.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "dados de cadastro inválidos", err.Error())
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "falha ao criar conta")
		return
	}

	response.OK(c, http.StatusCreated, result)
}

// Login authenticates and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req user.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "credenciais inválidas", err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "email ou senha incorretos")
		return
	}

	response.OK(c, http.StatusOK, result)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "não autenticado")
		return
	}

	profile, err := h.authService.Profile(c.Request.Context(), u)
	if err != nil {
		response.FromError(c, err, "falha ao carregar perfil")
		return
	}

	response.OK(c, http.StatusOK, profile)
}
