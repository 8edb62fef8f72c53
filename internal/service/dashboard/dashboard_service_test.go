// internal/service/dashboard/dashboard_service_test.go
package dashboard

import (
	"testing"
	"time"

	"compatlab-service/internal/domain/dashboard"

	"github.com/stretchr/testify/assert"
)

func TestFillMonthsPadsAndOrders(t *testing.T) {
	now := time.Date(2026, time.March, 31, 15, 0, 0, 0, time.UTC)

	sparse := []dashboard.MonthPoint{
		{Mes: "01/2026", Valor: 3},
		{Mes: "03/2026", Valor: 7},
	}

	got := fillMonths(sparse, now, 4)

	want := []dashboard.MonthPoint{
		{Mes: "12/2025", Valor: 0},
		{Mes: "01/2026", Valor: 3},
		{Mes: "02/2026", Valor: 0},
		{Mes: "03/2026", Valor: 7},
	}
	assert.Equal(t, want, got)
}

func TestFillMonthsEmptySeries(t *testing.T) {
	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	got := fillMonths(nil, now, 3)

	assert.Len(t, got, 3)
	assert.Equal(t, "06/2026", got[0].Mes)
	assert.Equal(t, "08/2026", got[2].Mes)
	for _, p := range got {
		assert.Zero(t, p.Valor)
	}
}

func TestMonthsAgoAnchorsAtFirstOfMonth(t *testing.T) {
	// March 31 minus naive month arithmetic lands in March again;
	// anchoring at day 1 keeps the window exact.
	now := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)

	got := monthsAgo(now, 6)

	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), got)
}
