/*
monitor.go - Background low-balance monitor

PURPOSE:
  Periodically snapshots every client's budget and raises alerts for
  funding categories that are nearly or fully spent, so coordinators can
  request a plan review before shifts start getting rejected.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reads plans and balances through the ledger (never writes)
  - Keeps only the alerts of the latest check
  - Logs each alert at warn level

ALERT LEVELS:
  - low:       remaining below LowThreshold of the category total
  - exhausted: nothing left (or overdrawn by adjustments)

USAGE:
  monitor := NewBudgetMonitor(ledger, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: ListAlerts endpoint
  - ledger/ledger.go: Snapshot
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertLevel grades a low-balance alert.
type AlertLevel string

const (
	AlertLow       AlertLevel = "low"
	AlertExhausted AlertLevel = "exhausted"
)

// Alert is one category of one client running out of funding.
type Alert struct {
	ClientID  ledger.ClientID
	Category  funding.FundingCategory
	Total     decimal.Decimal
	Remaining decimal.Decimal
	Level     AlertLevel
	RaisedAt  time.Time
}

// PercentRemaining is Remaining as a percentage of Total, one decimal.
func (a Alert) PercentRemaining() decimal.Decimal {
	if a.Total.IsZero() {
		return decimal.Zero
	}
	return a.Remaining.Div(a.Total).Mul(decimal.NewFromInt(100)).Round(1)
}

// BudgetMonitor checks budgets on a ticker.
type BudgetMonitor struct {
	Ledger        *ledger.Ledger
	Logger        *zap.Logger
	CheckInterval time.Duration
	LowThreshold  decimal.Decimal // fraction of the total, e.g. 0.10
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	alertsMu sync.RWMutex
	alerts   []Alert
}

// NewBudgetMonitor creates a monitor checking hourly with a 10% threshold.
func NewBudgetMonitor(l *ledger.Ledger, logger *zap.Logger) *BudgetMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetMonitor{
		Ledger:        l,
		Logger:        logger,
		CheckInterval: time.Hour,
		LowThreshold:  decimal.RequireFromString("0.10"),
		Enabled:       true,
	}
}

// Start begins the monitor. It checks once immediately.
func (m *BudgetMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Logger.Info("budget monitor disabled")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.Logger.Info("budget monitor started", zap.Duration("interval", m.CheckInterval))
}

// Stop stops the monitor and waits for an in-flight check.
func (m *BudgetMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Logger.Info("budget monitor stopped")
}

func (m *BudgetMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	m.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			m.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one check, replaces the current alerts and returns them.
func (m *BudgetMonitor) RunNow(ctx context.Context) []Alert {
	plans, err := m.Ledger.Backend.ListPlans(ctx)
	if err != nil {
		m.Logger.Error("budget monitor: list plans", zap.Error(err))
		return m.Alerts()
	}

	now := m.Ledger.Now()
	var alerts []Alert
	for _, plan := range plans {
		budget, err := m.Ledger.Snapshot(ctx, plan.ClientID)
		if err != nil {
			m.Logger.Error("budget monitor: snapshot",
				zap.String("client_id", string(plan.ClientID)), zap.Error(err))
			continue
		}
		for _, cat := range funding.FundingCategories {
			if _, ok := plan.Categories[cat]; !ok {
				continue
			}
			cb, _ := budget.For(cat)
			level, ok := m.classify(cb)
			if !ok {
				continue
			}
			a := Alert{
				ClientID:  plan.ClientID,
				Category:  cat,
				Total:     cb.Total,
				Remaining: cb.Remaining,
				Level:     level,
				RaisedAt:  now,
			}
			alerts = append(alerts, a)
			m.Logger.Warn("funding running low",
				zap.String("client_id", string(a.ClientID)),
				zap.String("category", string(a.Category)),
				zap.String("level", string(a.Level)),
				zap.String("remaining", a.Remaining.StringFixed(2)))
		}
	}

	m.alertsMu.Lock()
	m.alerts = alerts
	m.alertsMu.Unlock()
	return alerts
}

// Alerts returns the alerts of the latest check.
func (m *BudgetMonitor) Alerts() []Alert {
	m.alertsMu.RLock()
	defer m.alertsMu.RUnlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func (m *BudgetMonitor) classify(cb funding.CategoryBudget) (AlertLevel, bool) {
	if !cb.Total.IsPositive() {
		return "", false
	}
	if !cb.Remaining.IsPositive() {
		return AlertExhausted, true
	}
	if cb.Remaining.LessThan(cb.Total.Mul(m.LowThreshold)) {
		return AlertLow, true
	}
	return "", false
}

func toAlertDTO(a Alert) AlertDTO {
	return AlertDTO{
		ClientID:  string(a.ClientID),
		Category:  string(a.Category),
		Total:     a.Total.StringFixed(2),
		Remaining: a.Remaining.StringFixed(2),
		Percent:   a.PercentRemaining().StringFixed(1),
		Level:     string(a.Level),
		RaisedAt:  a.RaisedAt.Format(timeFormat),
	}
}
