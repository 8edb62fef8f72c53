// internal/domain/subscription/dto.go
package subscription

type SubscribeInput struct {
	IDPlano int64 `json:"id_plano" binding:"required"`
}

type AddMemberInput struct {
	Email string `json:"email" binding:"required,email"`
}

type TransferInput struct {
	Amount       int   `json:"quantidade" binding:"required"`
	TargetUserID int64 `json:"id_usuario_destino" binding:"required"`
}

type CancelInput struct {
	Motivo string `json:"motivo"`
}

type Detail struct {
	Subscription *Subscription `json:"assinatura"`
	PlanName     string        `json:"nome_plano"`
	IsEnterprise bool          `json:"enterprise"`
	Members      []Member      `json:"contas"`
}
