package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/domain/user"
	xerrors "compatlab-service/internal/pkg/errors"
	"compatlab-service/internal/pkg/pgxtest"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func packet(qty int, received time.Time) credit.Packet {
	return credit.Packet{
		Quantidade:      qty,
		DataRecebimento: sql.NullTime{Time: received, Valid: true},
	}
}

func TestSumValidPackets(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		packets      []credit.Packet
		validityDays int
		want         int
	}{
		{
			name: "sums fresh packets",
			packets: []credit.Packet{
				packet(10, now.AddDate(0, 0, -1)),
				packet(5, now.AddDate(0, 0, -2)),
			},
			validityDays: 365,
			want:         15,
		},
		{
			name: "excludes expired packets",
			packets: []credit.Packet{
				packet(10, now.AddDate(0, 0, -400)),
				packet(5, now.AddDate(0, 0, -2)),
			},
			validityDays: 365,
			want:         5,
		},
		{
			name: "zero validity means packets never expire",
			packets: []credit.Packet{
				packet(10, now.AddDate(-10, 0, 0)),
				packet(5, now.AddDate(0, 0, -2)),
			},
			validityDays: 0,
			want:         15,
		},
		{
			name: "negative validity means packets never expire",
			packets: []credit.Packet{
				packet(10, now.AddDate(-10, 0, 0)),
			},
			validityDays: -1,
			want:         10,
		},
		{
			name: "packets without receipt date never count",
			packets: []credit.Packet{
				{Quantidade: 10},
				packet(5, now.AddDate(0, 0, -2)),
			},
			validityDays: 365,
			want:         5,
		},
		{
			name: "packets without receipt date never count even without expiry",
			packets: []credit.Packet{
				{Quantidade: 10},
			},
			validityDays: 0,
			want:         0,
		},
		{
			name: "zero quantity packets are skipped",
			packets: []credit.Packet{
				{Quantidade: 0},
				packet(7, now.AddDate(0, 0, -1)),
			},
			validityDays: 365,
			want:         7,
		},
		{
			name: "negative packets subtract",
			packets: []credit.Packet{
				packet(10, now.AddDate(0, 0, -5)),
				packet(-3, now.AddDate(0, 0, -1)),
			},
			validityDays: 365,
			want:         7,
		},
		{
			name: "spends outlive the grants they consumed",
			packets: []credit.Packet{
				packet(10, now.AddDate(0, 0, -400)),
				packet(-4, now.AddDate(0, 0, -10)),
			},
			validityDays: 365,
			want:         -4,
		},
		{
			name: "packet expiring exactly today still counts",
			packets: []credit.Packet{
				packet(10, now.AddDate(0, 0, -365)),
			},
			validityDays: 365,
			want:         10,
		},
		{
			name:         "empty ledger",
			packets:      nil,
			validityDays: 365,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SumValidPackets(tt.packets, tt.validityDays, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPacketExpired(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	p := packet(10, now.AddDate(0, 0, -365))
	assert.False(t, p.Expired(365, now), "boundary day is still valid")

	p = packet(10, now.AddDate(0, 0, -366))
	assert.True(t, p.Expired(365, now))

	p = credit.Packet{Quantidade: 10}
	assert.True(t, p.Expired(365, now), "missing receipt date is never valid")
	assert.True(t, p.Expired(0, now), "missing receipt date is excluded even without expiry")
	assert.True(t, p.Expired(-1, now), "missing receipt date is excluded even without expiry")
}

func TestOriginTags(t *testing.T) {
	assert.Equal(t,
		"stripe:subscription:sub_1:checkout_session:cs_1",
		credit.OriginCheckoutSession("sub_1", "cs_1"))
	assert.Equal(t,
		"stripe:subscription:sub_1:invoice:in_1",
		credit.OriginInvoice("sub_1", "in_1"))
	assert.Equal(t, "stripe:session:cs_1", credit.OriginSession("cs_1", ""))
	assert.Equal(t, "stripe:session:cs_1:local:01ABC", credit.OriginSession("cs_1", "01ABC"))
	assert.Equal(t, "consumo_solicitacao:42", credit.OriginRequestSpend(42))
	assert.Equal(t, "transferencia_para:7", credit.OriginTransferTo(7))
	assert.Equal(t, "transferencia_de:3", credit.OriginTransferFrom(3))
	assert.Equal(t, "compra_creditos_9", credit.OriginPurchase(9))
	assert.Equal(t, "manual_add (operador:1)", credit.OriginManual(1))
	assert.Equal(t, "cadastro_inicial:5", credit.OriginSignup(5))
}

// --- in-memory stores ---

type fakePacketStore struct {
	packets map[int64][]credit.Packet
}

func newFakePacketStore() *fakePacketStore {
	return &fakePacketStore{packets: make(map[int64][]credit.Packet)}
}

func (f *fakePacketStore) ListByUser(ctx context.Context, userID int64) ([]credit.Packet, error) {
	return f.packets[userID], nil
}

func (f *fakePacketStore) ListByUserWithTx(ctx context.Context, tx pgx.Tx, userID int64) ([]credit.Packet, error) {
	return f.packets[userID], nil
}

func (f *fakePacketStore) InsertWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) error {
	f.packets[p.IDUsuario] = append(f.packets[p.IDUsuario], *p)
	return nil
}

type fakeUserStore struct{}

func (fakeUserStore) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return &user.User{ID: id}, nil
}

type fakeConfigStore struct {
	cfg sysconfig.SystemConfig
}

func (f *fakeConfigStore) Current(ctx context.Context) (*sysconfig.SystemConfig, error) {
	cfg := f.cfg
	return &cfg, nil
}

type fakeAuditStore struct {
	logs []billing.AuditLog
}

func (f *fakeAuditStore) CreateWithTx(ctx context.Context, tx pgx.Tx, log *billing.AuditLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeAuditStore) CreateWithTxAt(ctx context.Context, tx pgx.Tx, log *billing.AuditLog, at time.Time) error {
	log.CriadoEm = at
	f.logs = append(f.logs, *log)
	return nil
}

func newTestService(packets *fakePacketStore) (*LedgerService, *fakeAuditStore, *pgxtest.DB) {
	audit := &fakeAuditStore{}
	db := &pgxtest.DB{}
	svc := &LedgerService{
		packetRepo: packets,
		userRepo:   fakeUserStore{},
		configRepo: &fakeConfigStore{cfg: sysconfig.SystemConfig{
			PrecoDoCredito:               5,
			PrecoDaSolicitacaoEmCreditos: 1,
			ValidadeEmDias:               365,
			Vigente:                      true,
		}},
		auditRepo: audit,
		db:        db,
		logger:    zap.NewNop(),
	}
	return svc, audit, db
}

func grant(f *fakePacketStore, userID int64, qty int) {
	f.packets[userID] = append(f.packets[userID], credit.Packet{
		IDUsuario:       userID,
		Quantidade:      qty,
		Origem:          "seed",
		DataRecebimento: sql.NullTime{Time: time.Now(), Valid: true},
	})
}

func ledgerTotal(f *fakePacketStore) int {
	total := 0
	for _, ps := range f.packets {
		for _, p := range ps {
			total += p.Quantidade
		}
	}
	return total
}

func TestDebitWithTxInsufficientBalance(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 1, 3)
	svc, _, _ := newTestService(packets)

	_, err := svc.DebitWithTx(context.Background(), &pgxtest.Tx{}, 1, 5, "consumo_solicitacao:1")
	assert.ErrorIs(t, err, xerrors.ErrInsufficientCredits)
	assert.Len(t, packets.packets[1], 1, "no spend packet on a refused debit")
}

func TestDebitWithTxReturnsRemainingBalance(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 1, 10)
	svc, _, _ := newTestService(packets)

	saldo, err := svc.DebitWithTx(context.Background(), &pgxtest.Tx{}, 1, 4, "consumo_solicitacao:1")
	require.NoError(t, err)
	assert.Equal(t, 6, saldo)

	require.Len(t, packets.packets[1], 2)
	spend := packets.packets[1][1]
	assert.Equal(t, -4, spend.Quantidade)
	assert.Equal(t, "consumo_solicitacao:1", spend.Origem)
	assert.True(t, spend.DataRecebimento.Valid)
}

func TestDebitWithTxRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(newFakePacketStore())

	for _, amount := range []int{0, -3} {
		_, err := svc.DebitWithTx(context.Background(), &pgxtest.Tx{}, 1, amount, "x")
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	}
}

func TestTransferConservesCredits(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 1, 10)
	before := ledgerTotal(packets)
	svc, audit, db := newTestService(packets)

	err := svc.Transfer(context.Background(), 1, 2, 4)
	require.NoError(t, err)
	require.NotNil(t, db.Last)
	assert.True(t, db.Last.Committed)

	assert.Equal(t, before, ledgerTotal(packets), "transfer must not create or destroy credits")

	require.Len(t, packets.packets[1], 2)
	require.Len(t, packets.packets[2], 1)
	out := packets.packets[1][1]
	in := packets.packets[2][0]
	assert.Equal(t, -4, out.Quantidade)
	assert.Equal(t, 4, in.Quantidade)
	assert.Equal(t, credit.OriginTransferTo(2), out.Origem)
	assert.Equal(t, credit.OriginTransferFrom(1), in.Origem)
	assert.Equal(t, out.DataRecebimento.Time, in.DataRecebimento.Time, "both legs share one timestamp")

	require.Len(t, audit.logs, 2)
	assert.Equal(t, "transferencia_enviada", audit.logs[0].Acao)
	assert.Equal(t, "transferencia_recebida", audit.logs[1].Acao)
}

func TestTransferInsufficientBalance(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 1, 3)
	svc, _, db := newTestService(packets)

	err := svc.Transfer(context.Background(), 1, 2, 5)
	assert.ErrorIs(t, err, xerrors.ErrInsufficientCredits)
	assert.Len(t, packets.packets[1], 1)
	assert.Empty(t, packets.packets[2])
	assert.False(t, db.Last.Committed)
}

func TestTransferRejectsSelfAndNonPositive(t *testing.T) {
	svc, _, _ := newTestService(newFakePacketStore())

	assert.ErrorIs(t, svc.Transfer(context.Background(), 1, 1, 5), xerrors.ErrInvalidInput)
	assert.ErrorIs(t, svc.Transfer(context.Background(), 1, 2, 0), xerrors.ErrInvalidInput)
}

func TestAdjustSetComputesSignedDelta(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 7, 10)
	svc, audit, _ := newTestService(packets)

	saldo, err := svc.Adjust(context.Background(), 1, &user.AdjustBalanceInput{
		Operation:    user.OpSet,
		Amount:       4,
		TargetUserID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, saldo)

	require.Len(t, packets.packets[7], 2)
	assert.Equal(t, -6, packets.packets[7][1].Quantidade)
	assert.Equal(t, credit.OriginManual(1), packets.packets[7][1].Origem)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "ajuste_saldo", audit.logs[0].Acao)
}

func TestAdjustSubtractBelowZero(t *testing.T) {
	packets := newFakePacketStore()
	grant(packets, 7, 2)
	svc, _, _ := newTestService(packets)

	_, err := svc.Adjust(context.Background(), 1, &user.AdjustBalanceInput{
		Operation:    user.OpSubtract,
		Amount:       5,
		TargetUserID: 7,
	})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientCredits)
	assert.Len(t, packets.packets[7], 1)
}
