package api

import (
	"context"
	"testing"
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/carelink/funding-engine/ledger/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMonitor(t *testing.T, totals map[funding.FundingCategory]string) (*BudgetMonitor, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(store.NewTxMemory(), nil)
	l.Now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

	categories := make(map[funding.FundingCategory]ledger.Allocation)
	for cat, total := range totals {
		categories[cat] = ledger.Allocation{
			Total:         decimal.RequireFromString(total),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1},
		}
	}
	require.NoError(t, l.Backend.SavePlan(context.Background(), ledger.Plan{ClientID: "c1", Categories: categories}))
	return NewBudgetMonitor(l, nil), l
}

func TestBudgetMonitor_Levels(t *testing.T) {
	ctx := context.Background()
	m, l := setupMonitor(t, map[funding.FundingCategory]string{
		funding.CategorySIL:              "1000",
		funding.CategoryCommunityAccess:  "500",
		funding.CategoryCapacityBuilding: "0",
	})

	assert.Empty(t, m.RunNow(ctx), "full budgets raise nothing")

	// 950 of 1000 spent -> 5% left
	_, err := l.Adjust(ctx, "c1", funding.CategorySIL, decimal.RequireFromString("-950"), "spent", "test")
	require.NoError(t, err)
	// all of 500 spent
	_, err = l.Adjust(ctx, "c1", funding.CategoryCommunityAccess, decimal.RequireFromString("-500"), "spent", "test")
	require.NoError(t, err)

	alerts := m.RunNow(ctx)
	require.Len(t, alerts, 2)
	assert.Equal(t, funding.CategorySIL, alerts[0].Category)
	assert.Equal(t, AlertLow, alerts[0].Level)
	assert.Equal(t, "5.0", alerts[0].PercentRemaining().StringFixed(1))
	assert.Equal(t, funding.CategoryCommunityAccess, alerts[1].Category)
	assert.Equal(t, AlertExhausted, alerts[1].Level)
	assert.Equal(t, l.Now(), alerts[0].RaisedAt)

	assert.Len(t, m.Alerts(), 2)
}

func TestBudgetMonitor_ThresholdIsExclusive(t *testing.T) {
	ctx := context.Background()
	m, l := setupMonitor(t, map[funding.FundingCategory]string{funding.CategorySIL: "1000"})

	_, err := l.Adjust(ctx, "c1", funding.CategorySIL, decimal.RequireFromString("-900"), "spent", "test")
	require.NoError(t, err)
	assert.Empty(t, m.RunNow(ctx), "exactly 10% left is not low")

	_, err = l.Adjust(ctx, "c1", funding.CategorySIL, decimal.RequireFromString("-0.01"), "spent", "test")
	require.NoError(t, err)
	assert.Len(t, m.RunNow(ctx), 1)
}

func TestBudgetMonitor_StartStop(t *testing.T) {
	m, l := setupMonitor(t, map[funding.FundingCategory]string{funding.CategorySIL: "100"})
	_, err := l.Adjust(context.Background(), "c1", funding.CategorySIL, decimal.RequireFromString("-100"), "spent", "test")
	require.NoError(t, err)

	m.CheckInterval = 10 * time.Millisecond
	m.Start()
	m.Start() // no-op while running

	assert.Eventually(t, func() bool { return len(m.Alerts()) == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
}

func TestBudgetMonitor_Disabled(t *testing.T) {
	m, _ := setupMonitor(t, map[funding.FundingCategory]string{funding.CategorySIL: "100"})
	m.Enabled = false
	m.Start()
	m.Stop()
	assert.Empty(t, m.Alerts())
}
