// internal/domain/sysconfig/entity.go
package sysconfig

import "time"

// SystemConfig holds the pricing knobs. Exactly one row is flagged
// vigente at any time; changing config inserts a new row and moves
// the flag inside one transaction.
type SystemConfig struct {
	ID                           int64     `json:"id"`
	PrecoDoCredito               float64   `json:"preco_do_credito"`
	PrecoDaSolicitacaoEmCreditos int       `json:"preco_da_solicitacao_em_creditos"`
	ValidadeEmDias               int       `json:"validade_em_dias"`
	Vigente                      bool      `json:"vigente"`
	CriadoEm                     time.Time `json:"criado_em"`
}

type CreateInput struct {
	PrecoDoCredito float64 `json:"preco_do_credito" binding:"required"`
}
