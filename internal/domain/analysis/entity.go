// internal/domain/analysis/entity.go
package analysis

import (
	"database/sql"
	"time"
)

type RequestStatus string

const (
	StatusEmAndamento RequestStatus = "em_andamento"
	StatusFinalizado  RequestStatus = "finalizado"
)

// Valid reports whether the token is one of the two request states.
func (s RequestStatus) Valid() bool {
	return s == StatusEmAndamento || s == StatusFinalizado
}

// Request is a compatibility analysis order. Creating one debits the
// requester's credit balance at the current per-request price.
type Request struct {
	ID          int64          `json:"id"`
	IDUsuario   int64          `json:"id_usuario"`
	IDProdutoA  int64          `json:"id_produto_a"`
	IDProdutoB  int64          `json:"id_produto_b"`
	Status      RequestStatus  `json:"status"`
	Resultado   sql.NullString `json:"resultado,omitempty"`
	ConcluidaEm sql.NullTime   `json:"concluida_em,omitempty"`
	CriadoEm    time.Time      `json:"criado_em"`
}

type Produto struct {
	ID        int64     `json:"id"`
	Nome      string    `json:"nome"`
	Descricao string    `json:"descricao"`
	CriadoEm  time.Time `json:"criado_em"`
}

// QueueItem is an open request joined with the priority of the
// requester's plan, for the operator work queue.
type QueueItem struct {
	Request           Request `json:"solicitacao"`
	NomeUsuario       string  `json:"nome_usuario"`
	EmailUsuario      string  `json:"email_usuario"`
	PrioridadeDeTempo int     `json:"prioridade_de_tempo"`
}
