// internal/service/ledger/stores.go
package ledger

import (
	"context"
	"time"

	"compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/domain/user"

	"github.com/jackc/pgx/v5"
)

// Persistence seams for the ledger. The postgres repositories satisfy
// all of them; tests substitute in-memory fakes.

type PacketStore interface {
	ListByUser(ctx context.Context, userID int64) ([]credit.Packet, error)
	ListByUserWithTx(ctx context.Context, tx pgx.Tx, userID int64) ([]credit.Packet, error)
	InsertWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

type ConfigStore interface {
	Current(ctx context.Context) (*sysconfig.SystemConfig, error)
}

type AuditStore interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, log *billing.AuditLog) error
	CreateWithTxAt(ctx context.Context, tx pgx.Tx, log *billing.AuditLog, at time.Time) error
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}
