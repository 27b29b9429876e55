// SPDX-License-Identifier: MIT
//
// Package udp streams the level meter's spectrum to an external visualiser.
package udp

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	applog "studio/internal/log"
)

// DefaultInterval is used when the publisher is given none (~60Hz).
const DefaultInterval = 16 * time.Millisecond

// headerSize is sequence (4) + timestamp (8) + count (2).
const headerSize = 14

// SpectrumSource provides the magnitudes to publish.
type SpectrumSource interface {
	Bins() int
	MagnitudesInto(dest []float64) error
}

// PacketSender delivers one encoded packet.
type PacketSender interface {
	Send(data []byte) error
}

// Publisher sends the spectrum of a SpectrumSource every interval.
//
// Packet layout, big endian:
//
//	uint32    sequence number, starting at 1
//	int64     timestamp, nanoseconds since epoch
//	uint16    magnitude count N
//	float32*N magnitudes
type Publisher struct {
	sender   PacketSender
	source   SpectrumSource
	interval time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex // Protects ticker and done during Start/Stop
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
	running bool

	sequence uint32
	mags     []float64
	f32      []float32
	packet   bytes.Buffer
	now      func() time.Time
}

// NewPublisher creates a stopped publisher.
func NewPublisher(interval time.Duration, sender PacketSender, source SpectrumSource) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp publisher: spectrum source cannot be nil")
	}
	bins := source.Bins()
	if bins <= 0 || bins > 0xFFFF {
		return nil, errors.Errorf("udp publisher: %d bins do not fit a packet", bins)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		log:      applog.Named("udp"),
		mags:     make([]float64, bins),
		f32:      make([]float32, bins),
		now:      time.Now,
	}
	p.packet.Grow(headerSize + 4*bins)
	p.log.Infow("publisher ready", "interval", interval, "bins", bins)
	return p, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})

	ticker, done := p.ticker, p.done
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := p.publish(); err != nil {
					p.log.Debugw("packet skipped", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
}

// Stop ends the goroutine and waits for it. Calling it while stopped is a
// no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.done)
	p.ticker.Stop()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Debugw("publisher stopped", "packets", p.sequence)
	return nil
}

// Close implements io.Closer.
func (p *Publisher) Close() error { return p.Stop() }

// publish builds and sends one packet. Only the publishing goroutine calls
// it, so the buffers need no lock.
func (p *Publisher) publish() error {
	if err := p.source.MagnitudesInto(p.mags); err != nil {
		return err
	}
	for i, v := range p.mags {
		p.f32[i] = float32(v)
	}

	p.sequence++
	p.packet.Reset()
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], p.sequence)
	binary.BigEndian.PutUint64(header[4:12], uint64(p.now().UnixNano()))
	binary.BigEndian.PutUint16(header[12:14], uint16(len(p.f32)))
	p.packet.Write(header[:])
	if err := binary.Write(&p.packet, binary.BigEndian, p.f32); err != nil {
		return errors.Wrap(err, "pack magnitudes")
	}
	return p.sender.Send(p.packet.Bytes())
}

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// DecodePacket parses a packet produced by Publisher.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < headerSize {
		return nil, errors.Errorf("packet too short: %d bytes", len(data))
	}
	n := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != headerSize+4*n {
		return nil, errors.Errorf("packet holds %d bytes, header announces %d magnitudes", len(data), n)
	}
	pkt := &Packet{
		Sequence:   binary.BigEndian.Uint32(data[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12]))),
		Magnitudes: make([]float32, n),
	}
	if err := binary.Read(bytes.NewReader(data[headerSize:]), binary.BigEndian, pkt.Magnitudes); err != nil {
		return nil, errors.Wrap(err, "unpack magnitudes")
	}
	return pkt, nil
}
