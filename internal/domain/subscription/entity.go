// internal/domain/subscription/entity.go
package subscription

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusAtiva     Status = "ativa"
	StatusCancelada Status = "cancelada"
	StatusInativa   Status = "inativa"
)

// Valid reports whether s is one of the known subscription states.
func (s Status) Valid() bool {
	switch s {
	case StatusAtiva, StatusCancelada, StatusInativa:
		return true
	}
	return false
}

// CanTransitionTo encodes the allowed state changes. A cancelled
// subscription stays terminal until a new payment reactivates it.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusAtiva:
		return next == StatusCancelada || next == StatusInativa
	case StatusInativa:
		return next == StatusAtiva || next == StatusCancelada
	case StatusCancelada:
		return next == StatusAtiva
	}
	return false
}

type Subscription struct {
	ID                   int64          `json:"id"`
	IDPlano              int64          `json:"id_plano"`
	IDUsuarioResponsavel int64          `json:"id_usuario_responsavel"`
	Status               Status         `json:"status"`
	StripeSubscriptionID sql.NullString `json:"stripe_subscription_id,omitempty"`
	FimPeriodoAtual      sql.NullTime   `json:"fim_periodo_atual,omitempty"`
	CancelarFimPeriodo   bool           `json:"cancelar_fim_periodo"`
	InicioEm             time.Time      `json:"inicio_em"`
	CanceladaEm          sql.NullTime   `json:"cancelada_em,omitempty"`
	CriadoEm             time.Time      `json:"criado_em"`
	AtualizadoEm         time.Time      `json:"atualizado_em"`
}

// Member is a user linked to a subscription, as shown on the
// collaborator listing.
type Member struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}
