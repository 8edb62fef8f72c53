// internal/domain/credit/entity.go
package credit

import (
	"database/sql"
	"fmt"
	"time"
)

// Packet is one append-only credit grant. The balance of a user is
// the sum of their non-expired packet quantities; packets are never
// updated in place except by the compensating entries spending writes.
type Packet struct {
	ID              int64        `json:"id"`
	IDUsuario       int64        `json:"id_usuario"`
	Quantidade      int          `json:"quantidade"`
	Origem          string       `json:"origem"`
	DataRecebimento sql.NullTime `json:"data_recebimento,omitempty"`
	CriadoEm        time.Time    `json:"criado_em"`
}

// Expired reports whether the packet no longer counts toward the
// balance. validityDays <= 0 means packets never expire.
func (p *Packet) Expired(validityDays int, now time.Time) bool {
	if !p.DataRecebimento.Valid {
		// No receipt date means the grant never became effective.
		return true
	}
	if validityDays <= 0 {
		return false
	}
	return now.After(p.DataRecebimento.Time.AddDate(0, 0, validityDays))
}

// Origin tag constructors. Every packet carries a machine-parsable
// origem string; the (origem, id_usuario) pair is unique, which is
// what makes re-delivered events idempotent.

func OriginCheckoutSession(subscriptionID, sessionID string) string {
	return fmt.Sprintf("stripe:subscription:%s:checkout_session:%s", subscriptionID, sessionID)
}

func OriginInvoice(subscriptionID, invoiceID string) string {
	return fmt.Sprintf("stripe:subscription:%s:invoice:%s", subscriptionID, invoiceID)
}

func OriginSession(sessionID, localOrderID string) string {
	if localOrderID == "" {
		return fmt.Sprintf("stripe:session:%s", sessionID)
	}
	return fmt.Sprintf("stripe:session:%s:local:%s", sessionID, localOrderID)
}

func OriginRequestSpend(requestID int64) string {
	return fmt.Sprintf("consumo_solicitacao:%d", requestID)
}

func OriginTransferTo(targetUserID int64) string {
	return fmt.Sprintf("transferencia_para:%d", targetUserID)
}

func OriginTransferFrom(sourceUserID int64) string {
	return fmt.Sprintf("transferencia_de:%d", sourceUserID)
}

func OriginPurchase(purchaseID int64) string {
	return fmt.Sprintf("compra_creditos_%d", purchaseID)
}

func OriginManual(operatorID int64) string {
	return fmt.Sprintf("manual_add (operador:%d)", operatorID)
}

func OriginSignup(userID int64) string {
	return fmt.Sprintf("cadastro_inicial:%d", userID)
}
