package risk

import (
	"log"
	"sync"
)

// Metrics tracks a user's realized trading results for the current day.
type Metrics struct {
	DailyPnl    float64
	DailyLoss   float64
	DailyTrades int
}

// metricsBook keeps per-user daily metrics. Losses feed the daily-loss budget
// check.
type metricsBook struct {
	mu      sync.RWMutex
	perUser map[string]*Metrics
}

func newMetricsBook() *metricsBook {
	return &metricsBook{perUser: make(map[string]*Metrics)}
}

func (b *metricsBook) record(userID string, realizedPnl float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.perUser[userID]
	if !ok {
		m = &Metrics{}
		b.perUser[userID] = m
	}
	m.DailyTrades++
	m.DailyPnl += realizedPnl
	if realizedPnl < 0 {
		m.DailyLoss += -realizedPnl
	}
}

func (b *metricsBook) dailyLoss(userID string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if m, ok := b.perUser[userID]; ok {
		return m.DailyLoss
	}
	return 0
}

func (b *metricsBook) snapshot(userID string) Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if m, ok := b.perUser[userID]; ok {
		return *m
	}
	return Metrics{}
}

func (b *metricsBook) resetDaily() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for userID, m := range b.perUser {
		if m.DailyTrades > 0 {
			log.Printf("[RISK] daily reset user=%s pnl=%.2f loss=%.2f trades=%d",
				userID, m.DailyPnl, m.DailyLoss, m.DailyTrades)
		}
	}
	b.perUser = make(map[string]*Metrics)
}
