// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"smoothfade/internal/fade"
	applog "smoothfade/internal/log"
)

// Monitor periodically samples a fader and fans the snapshot out to every
// registered transport. While the fader is idle only changes are sent.
type Monitor struct {
	source     GainSource
	clock      fade.Clock
	interval   time.Duration
	transports []Transport

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	last    Snapshot
	hasLast bool
}

// NewMonitor creates a Monitor. An interval <= 0 defaults to 50ms.
func NewMonitor(source GainSource, clock fade.Clock, interval time.Duration, transports ...Transport) (*Monitor, error) {
	if source == nil || clock == nil {
		return nil, fmt.Errorf("Monitor: source and clock are required")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("Monitor: at least one transport is required")
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
		applog.Warnf("Monitor: Invalid interval provided, defaulting to %s", interval)
	}

	return &Monitor{
		source:     source,
		clock:      clock,
		interval:   interval,
		transports: transports,
	}, nil
}

// Start launches the sampling goroutine. Calling Start on a running
// Monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		applog.Warnf("Monitor: Start called but already running.")
		return
	}
	m.ticker = time.NewTicker(m.interval)
	m.doneChan = make(chan struct{})
	ticker, doneChan := m.ticker, m.doneChan
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ticker.C:
				m.Publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Publish takes one snapshot and sends it to every transport, unless the
// fader is idle and nothing changed since the last snapshot sent. It is
// called by the sampling goroutine; call it directly only while stopped.
func (m *Monitor) Publish() {
	snap := TakeSnapshot(m.source, m.clock)
	if m.hasLast && !snap.Fading && sameState(snap, m.last) {
		return
	}
	m.last, m.hasLast = snap, true

	for _, t := range m.transports {
		if err := t.Send(snap); err != nil {
			applog.Warnf("Monitor: Error sending snapshot via %T: %v", t, err)
		}
	}
}

// Stop ends the sampling goroutine and waits for it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.doneChan)
	m.ticker = nil
	m.mu.Unlock()

	m.wg.Wait()
}

// Close stops the Monitor and closes every transport.
func (m *Monitor) Close() error {
	m.Stop()

	var errs []error
	for _, t := range m.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
