// internal/domain/billing/entity.go
package billing

import (
	"database/sql"
	"time"
)

// StripeEvent is the idempotency record for webhook deliveries.
// A row with processed=false marks an event we have seen but not yet
// finished, so Stripe's retries get another chance at it.
type StripeEvent struct {
	ID           int64        `json:"id"`
	EventID      string       `json:"event_id"`
	EventType    string       `json:"event_type"`
	Payload      []byte       `json:"payload,omitempty"`
	Processed    bool         `json:"processed"`
	RecebidoEm   time.Time    `json:"recebido_em"`
	ProcessadoEm sql.NullTime `json:"processado_em,omitempty"`
}

type Compra struct {
	ID                 int64     `json:"id"`
	IDUsuario          int64     `json:"id_usuario"`
	QuantidadeCreditos int       `json:"quantidade_creditos"`
	ValorPago          float64   `json:"valor_pago"`
	StripeSessionID    string    `json:"stripe_session_id"`
	CriadoEm           time.Time `json:"criado_em"`
}

type Receita struct {
	ID        int64     `json:"id"`
	Valor     float64   `json:"valor"`
	Descricao string    `json:"descricao"`
	CriadoEm  time.Time `json:"criado_em"`
}

type AuditLog struct {
	ID        int64     `json:"id"`
	IDUsuario int64     `json:"id_usuario"`
	Acao      string    `json:"acao"`
	Detalhe   string    `json:"detalhe"`
	CriadoEm  time.Time `json:"criado_em"`
}
