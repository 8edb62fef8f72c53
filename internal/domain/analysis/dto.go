// internal/domain/analysis/dto.go
package analysis

type CreateRequestInput struct {
	IDProdutoA int64 `json:"id_produto_a" binding:"required"`
	IDProdutoB int64 `json:"id_produto_b" binding:"required"`
}

// CreateRequestResult carries the new request together with the
// balance left after its cost was debited.
type CreateRequestResult struct {
	Solicitacao   *Request `json:"solicitacao"`
	SaldoRestante int      `json:"saldo_restante"`
}

type UpdateStatusInput struct {
	Status string `json:"status" binding:"required"`
}

type ConcludeInput struct {
	Resultado string `json:"resultado" binding:"required"`
	Status    string `json:"status"`
}

type CreateProdutoInput struct {
	Nome      string `json:"nome" binding:"required"`
	Descricao string `json:"descricao"`
}
