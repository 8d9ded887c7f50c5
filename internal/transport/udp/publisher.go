// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"smoothfade/internal/fade"
	applog "smoothfade/internal/log"
	"smoothfade/internal/transport"
)

// PacketSize is the length in bytes of every gain packet.
const PacketSize = 4 + 8 + 8 + 4 + 4 + 8 + 1

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short gain packet")

// UDPPublisher periodically samples a fader, packs the snapshot into a
// fixed binary format, and sends it over UDP using a UDPSender.
// It runs in a separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   *UDPSender           // The underlying UDP sender instance.
	source   transport.GainSource // The fader to sample.
	clock    fade.Clock           // The fader's clock.
	interval time.Duration        // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source transport.GainSource, clock fade.Clock) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil || clock == nil {
		return nil, fmt.Errorf("UDPPublisher: gain source and clock cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Packet: %d bytes)", interval, PacketSize)

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		clock:        clock,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start begins the periodic publishing process.
// It launches a goroutine that ticks at the configured interval, calling
// buildAndSendPacket on each tick until Stop is called.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Captured so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Clock Time        | float64        | 8            | Fader clock seconds      |
| Value             | float32        | 4            | Gain in effect now       |
| Target            | float32        | 4            | Gain at window end       |
| End Time          | float64        | 8            | Window end, clock secs   |
| Direction         | uint8          | 1            | 0 none, 1 in, 2 out      |
+------------------------------------------------------------------------------+
*/

// Packet is a decoded gain packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Time      float64
	Value     float32
	Target    float32
	EndTime   float64
	Direction fade.Direction
}

// buildAndSendPacket samples the fader, packs a Packet and sends it.
func (p *UDPPublisher) buildAndSendPacket() {
	snap := transport.TakeSnapshot(p.source, p.clock)
	dir, _ := fade.ParseDirection(snap.Direction)

	p.sequenceNum++
	pkt := Packet{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Time:      snap.Time,
		Value:     float32(snap.Value),
		Target:    float32(snap.Target),
		EndTime:   snap.EndTime,
		Direction: dir,
	}

	p.packetBuffer.Reset()
	if err := encodePacket(p.packetBuffer, pkt); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

func encodePacket(buf *bytes.Buffer, pkt Packet) error {
	fields := []any{
		pkt.Sequence,
		pkt.Timestamp,
		pkt.Time,
		pkt.Value,
		pkt.Target,
		pkt.EndTime,
		uint8(pkt.Direction),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// DecodePacket parses a gain packet.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < PacketSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	be := binary.BigEndian
	return Packet{
		Sequence:  be.Uint32(b[0:]),
		Timestamp: int64(be.Uint64(b[4:])),
		Time:      math.Float64frombits(be.Uint64(b[12:])),
		Value:     math.Float32frombits(be.Uint32(b[20:])),
		Target:    math.Float32frombits(be.Uint32(b[24:])),
		EndTime:   math.Float64frombits(be.Uint64(b[28:])),
		Direction: fade.Direction(b[36]),
	}, nil
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
