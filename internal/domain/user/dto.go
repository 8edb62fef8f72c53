// internal/domain/user/dto.go
package user

type RegisterInput struct {
	Nome            string `json:"nome" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Senha           string `json:"senha" binding:"required,min=8"`
	SaldoEmCreditos int    `json:"saldo_em_creditos"`
}

type LoginInput struct {
	Email string `json:"email" binding:"required,email"`
	Senha string `json:"senha" binding:"required"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  *Profile `json:"user"`
}

// Profile is the public view of a user, balance included.
type Profile struct {
	ID              int64    `json:"id"`
	Nome            string   `json:"nome"`
	Email           string   `json:"email"`
	TipoUsuario     UserType `json:"tipo_usuario"`
	JaFezCompra     bool     `json:"ja_fez_compra"`
	SaldoEmCreditos int      `json:"saldo_em_creditos"`
}

type BalanceOp string

const (
	OpAdd      BalanceOp = "add"
	OpSubtract BalanceOp = "subtract"
	OpSet      BalanceOp = "set"
)

type AdjustBalanceInput struct {
	Amount       int       `json:"quantidade"`
	Operation    BalanceOp `json:"operacao" binding:"required"`
	TargetUserID int64     `json:"id_usuario"`
	Reason       string    `json:"motivo"`
}

type BalanceResponse struct {
	SaldoEmCreditos int       `json:"saldo_em_creditos"`
	User            UserBrief `json:"user"`
}

type UserBrief struct {
	ID   int64  `json:"id"`
	Nome string `json:"nome"`
}
