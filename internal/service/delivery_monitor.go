package service

import (
	"context"
	"sync"
	"time"

	"chitchat/internal/constants"
	"chitchat/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ScheduledCounter counts pending and overdue scheduled messages.
type ScheduledCounter interface {
	CountScheduled(ctx context.Context, now, overdueBefore time.Time) (int, int, error)
}

// DeliveryMonitor publishes gauges for the scheduled-message queue and warns
// when messages stay due without being promoted.
type DeliveryMonitor struct {
	db            ScheduledCounter
	checkInterval time.Duration
	overdueGrace  time.Duration
	warnThreshold int
	registry      *metrics.Registry
	logger        *logrus.Logger
	now           func() time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewDeliveryMonitor creates a monitor. A message counts as overdue once it
// has been due for longer than overdueGrace.
func NewDeliveryMonitor(db ScheduledCounter, checkInterval, overdueGrace time.Duration, registry *metrics.Registry, logger *logrus.Logger) *DeliveryMonitor {
	if checkInterval <= 0 {
		checkInterval = constants.DefaultMonitorIntervalSec * time.Second
	}
	return &DeliveryMonitor{
		db:            db,
		checkInterval: checkInterval,
		overdueGrace:  overdueGrace,
		warnThreshold: constants.DefaultOverdueWarnThreshold,
		registry:      metrics.OrGlobal(registry),
		logger:        logger,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

func (m *DeliveryMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithFields(logrus.Fields{
		"check_interval": m.checkInterval.String(),
		"overdue_grace":  m.overdueGrace.String(),
	}).Info("Starting delivery monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *DeliveryMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Check samples the queue once and returns the counts.
func (m *DeliveryMonitor) Check(ctx context.Context) (pending, overdue int) {
	now := m.now().UTC()
	pending, overdue, err := m.db.CountScheduled(ctx, now, now.Add(-m.overdueGrace))
	if err != nil {
		m.logger.WithError(err).Error("Failed to count scheduled messages")
		return 0, 0
	}

	m.registry.SetGauge(metrics.ScheduledPending, float64(pending), nil, "Messages scheduled for a future time")
	m.registry.SetGauge(metrics.ScheduledOverdue, float64(overdue), nil, "Due messages not yet promoted")

	if overdue >= m.warnThreshold && overdue > 0 {
		m.logger.WithFields(logrus.Fields{
			"overdue_count": overdue,
			"pending_count": pending,
			"grace":         m.overdueGrace.String(),
		}).Warn("Scheduled messages are overdue for delivery")
	}
	return pending, overdue
}
