package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	ordersPlaced    atomic.Uint64
	ordersRejected  atomic.Uint64
	roundsSettled   atomic.Uint64
	roundsFailed    atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// NewMetrics returns a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordEvent records one processed sequencer event.
func (m *Metrics) RecordEvent() {
	m.eventsProcessed.Add(1)
}

// RecordOrderPlaced records an accepted order.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderRejected records a rejected order.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// RecordRoundSettled records a closed settlement round.
func (m *Metrics) RecordRoundSettled() {
	m.roundsSettled.Add(1)
}

// RecordRoundFailed records a settlement round left open after a failure.
func (m *Metrics) RecordRoundFailed() {
	m.roundsFailed.Add(1)
}

// IncrementConnections increments active gateway connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active gateway connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed   uint64
	OrdersPlaced      uint64
	OrdersRejected    uint64
	RoundsSettled     uint64
	RoundsFailed      uint64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsProcessed:   m.eventsProcessed.Load(),
		OrdersPlaced:      m.ordersPlaced.Load(),
		OrdersRejected:    m.ordersRejected.Load(),
		RoundsSettled:     m.roundsSettled.Load(),
		RoundsFailed:      m.roundsFailed.Load(),
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}
