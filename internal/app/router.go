// internal/app/router.go
package app

import (
	analysisHandler "compatlab-service/internal/handlers/analysis"
	authHandler "compatlab-service/internal/handlers/auth"
	billingHandler "compatlab-service/internal/handlers/billing"
	creditHandler "compatlab-service/internal/handlers/credit"
	dashboardHandler "compatlab-service/internal/handlers/dashboard"
	planHandler "compatlab-service/internal/handlers/plan"
	subscriptionHandler "compatlab-service/internal/handlers/subscription"
	sysconfigHandler "compatlab-service/internal/handlers/sysconfig"
	webhookHandler "compatlab-service/internal/handlers/webhook"
	"compatlab-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth         *authHandler.AuthHandler
	Credit       *creditHandler.CreditHandler
	Plan         *planHandler.PlanHandler
	Subscription *subscriptionHandler.SubscriptionHandler
	Billing      *billingHandler.BillingHandler
	Webhook      *webhookHandler.WebhookHandler
	Analysis     *analysisHandler.AnalysisHandler
	Config       *sysconfigHandler.ConfigHandler
	Dashboard    *dashboardHandler.DashboardHandler

	AuthMW gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Stripe posts here; the handler reads the raw body itself.
	r.POST("/webhook", h.Webhook.Handle)

	// ==================== Public ====================
	r.POST("/usuarios", h.Auth.Register)
	r.POST("/login", h.Auth.Login)
	r.GET("/planos", h.Plan.List)
	r.GET("/planos/:id", h.Plan.Get)
	r.GET("/preco-credito", h.Config.Preco)

	// ==================== Authenticated ====================
	auth := r.Group("/")
	auth.Use(h.AuthMW)
	{
		auth.GET("/usuarios/me", h.Auth.Me)
		auth.GET("/usuarios/saldo", h.Credit.GetBalance)
		auth.PATCH("/usuarios/saldo", h.Credit.AdjustBalance)

		auth.POST("/assinaturas", h.Subscription.Subscribe)
		auth.GET("/assinaturas/me", h.Subscription.Detail)
		auth.GET("/assinaturas/me/contas", h.Subscription.ListMembers)
		auth.POST("/assinaturas/me/contas", h.Subscription.AddMember)
		auth.DELETE("/assinaturas/me/contas/:id", h.Subscription.RemoveMember)
		auth.POST("/assinaturas/me/contas/transferir", h.Subscription.Transfer)
		auth.POST("/cancelamentoAssinatura/cancelar", h.Subscription.Cancel)

		auth.POST("/checkout/creditos", h.Billing.CreateCheckout)
		auth.GET("/compras", h.Billing.ListPurchases)

		auth.POST("/solicitacoes", h.Analysis.Create)
		auth.GET("/solicitacoes", h.Analysis.List)
		// /solicitacoes/todas rides the same wildcard; the handler
		// dispatches it to the admin queue.
		auth.GET("/solicitacoes/:id", h.Analysis.Get)

		auth.GET("/produtos", h.Analysis.ListProdutos)
		auth.GET("/config/latest", h.Config.Current)
		auth.GET("/dashboard/me", h.Dashboard.Me)
	}

	// ==================== Administrative ====================
	admin := r.Group("/")
	admin.Use(h.AuthMW, middleware.RequireAdmin())
	{
		admin.POST("/planos", h.Plan.Create)
		admin.POST("/produtos", h.Analysis.CreateProduto)
		admin.POST("/compras/creditos", h.Billing.RegisterPurchase)

		admin.POST("/solicitacoes/:id/vincular", h.Analysis.Vincular)
		admin.PATCH("/solicitacoes/:id/status", h.Analysis.UpdateStatus)

		admin.POST("/config", h.Config.Create)
		admin.GET("/config/historico", h.Config.History)
		admin.GET("/dashboard/completo", h.Dashboard.Completo)
	}
}
