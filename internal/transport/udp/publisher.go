// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	"tuner/internal/log"
	"tuner/internal/tuner"
)

// FrameSource is polled by the publisher. *tuner.Tuner satisfies it.
type FrameSource interface {
	Latest() (tuner.Frame, bool)
}

// Sender transmits one datagram.
type Sender interface {
	Send(data []byte) error
}

var (
	_ FrameSource = (*tuner.Tuner)(nil)
	_ Sender      = (*UDPSender)(nil)
)

// UDPPublisher periodically fetches the latest frame, packs it and sends it.
// A frame already sent is not repeated. It runs in a separate goroutine
// managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	source   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	lastSeq uint32
	sent    bool
	packet  []byte // reused between sends
}

// NewUDPPublisher creates a publisher. An interval <= 0 defaults to 50ms.
func NewUDPPublisher(interval time.Duration, sender Sender, source FrameSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: frame source cannot be nil")
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
		log.Warnf("udp: invalid interval provided, defaulting to %s", interval)
	}

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   make([]byte, 0, headerSize+4*64),
	}, nil
}

// Start begins periodic publishing. Calling Start while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("udp: Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("udp: publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("udp: publisher stopped")
	return nil
}

// publish sends the latest frame if it is new.
func (p *UDPPublisher) publish() {
	frame, ok := p.source.Latest()
	if !ok || (p.sent && frame.Seq == p.lastSeq) {
		return
	}

	packet, err := AppendFrame(p.packet[:0], frame)
	if err != nil {
		log.Errorf("udp: %v", err)
		return
	}
	p.packet = packet

	if err := p.sender.Send(packet); err != nil {
		log.Errorf("udp: failed to send frame %d: %v", frame.Seq, err)
		return
	}
	p.lastSeq = frame.Seq
	p.sent = true
	log.Debugf("udp: sent frame %d (%d bytes)", frame.Seq, len(packet))
}

// Close implements io.Closer by stopping the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
