package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSpectrum struct {
	mags []float64
	err  error
}

func (f *fixedSpectrum) Bins() int { return len(f.mags) }

func (f *fixedSpectrum) MagnitudesInto(dest []float64) error {
	if f.err != nil {
		return f.err
	}
	copy(dest, f.mags)
	return nil
}

type packetSink struct {
	mu      sync.Mutex
	packets [][]byte
}

func (s *packetSink) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, append([]byte(nil), data...))
	return nil
}

func (s *packetSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

func TestPublishEncodesPacket(t *testing.T) {
	sink := &packetSink{}
	p, err := NewPublisher(time.Hour, sink, &fixedSpectrum{mags: []float64{0, 0.5, 1.25}})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(12, 34) }

	require.NoError(t, p.publish())
	require.NoError(t, p.publish())
	require.Equal(t, 2, sink.count())
	assert.Len(t, sink.packets[0], headerSize+3*4)

	pkt, err := DecodePacket(sink.packets[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pkt.Sequence)
	assert.True(t, pkt.Timestamp.Equal(time.Unix(12, 34)))
	assert.Equal(t, []float32{0, 0.5, 1.25}, pkt.Magnitudes)
}

func TestPublishSourceError(t *testing.T) {
	sink := &packetSink{}
	p, err := NewPublisher(time.Hour, sink, &fixedSpectrum{mags: make([]float64, 4), err: errors.New("not ready")})
	require.NoError(t, err)
	assert.Error(t, p.publish())
	assert.Zero(t, sink.count())
}

func TestNewPublisherValidates(t *testing.T) {
	_, err := NewPublisher(0, nil, &fixedSpectrum{mags: make([]float64, 2)})
	assert.Error(t, err)
	_, err = NewPublisher(0, &packetSink{}, nil)
	assert.Error(t, err)
	_, err = NewPublisher(0, &packetSink{}, &fixedSpectrum{})
	assert.Error(t, err)

	p, err := NewPublisher(0, &packetSink{}, &fixedSpectrum{mags: make([]float64, 2)})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, p.interval)
}

func TestStartStopIdempotent(t *testing.T) {
	sink := &packetSink{}
	p, err := NewPublisher(time.Millisecond, sink, &fixedSpectrum{mags: make([]float64, 8)})
	require.NoError(t, err)

	require.NoError(t, p.Stop(), "stop before start")
	p.Start()
	p.Start()
	assert.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Close())

	sent := sink.count()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, sent, sink.count(), "nothing sent after stop")
}

func TestDecodePacketRejectsMalformed(t *testing.T) {
	_, err := DecodePacket([]byte{1, 2, 3})
	assert.Error(t, err)

	bad := make([]byte, headerSize+4)
	bad[13] = 2 // announces two magnitudes, carries one
	_, err = DecodePacket(bad)
	assert.Error(t, err)
}

func TestSenderOverLoopback(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	sender, err := NewUDPSender(listener.LocalAddr().String())
	require.NoError(t, err)

	p, err := NewPublisher(time.Hour, sender, &fixedSpectrum{mags: []float64{0.25, 0.75}})
	require.NoError(t, err)
	require.NoError(t, p.publish())

	buf := make([]byte, 1500)
	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)
	pkt, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.75}, pkt.Magnitudes)

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send([]byte{1}), ErrClosed)

	_, err = NewUDPSender("not an address")
	assert.Error(t, err)
}
