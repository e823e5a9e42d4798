// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"tuner/internal/tuner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu    sync.Mutex
	frame tuner.Frame
	ok    bool
}

func (s *stubSource) Latest() (tuner.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame.Clone(), s.ok
}

func (s *stubSource) set(f tuner.Frame) {
	s.mu.Lock()
	s.frame, s.ok = f, true
	s.mu.Unlock()
}

type recordingSender struct {
	mu      sync.Mutex
	packets [][]byte
	err     error
}

func (r *recordingSender) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.packets = append(r.packets, append([]byte(nil), data...))
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

func TestNewUDPPublisher_Validation(t *testing.T) {
	_, err := NewUDPPublisher(time.Millisecond, nil, &stubSource{})
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, &recordingSender{}, nil)
	assert.Error(t, err)

	p, err := NewUDPPublisher(0, &recordingSender{}, &stubSource{})
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, p.interval)
}

func TestPublish_SkipsMissingAndRepeatedFrames(t *testing.T) {
	src := &stubSource{}
	snd := &recordingSender{}
	p, err := NewUDPPublisher(time.Millisecond, snd, src)
	require.NoError(t, err)

	p.publish()
	assert.Equal(t, 0, snd.count(), "nothing to send before the first frame")

	src.set(testFrame(1))
	p.publish()
	p.publish()
	assert.Equal(t, 1, snd.count(), "same frame sent twice")

	src.set(testFrame(2))
	p.publish()
	require.Equal(t, 2, snd.count())

	pkt, err := Decode(snd.packets[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pkt.Seq)
}

func TestPublish_RetriesAfterSendError(t *testing.T) {
	src := &stubSource{}
	src.set(testFrame(5))
	snd := &recordingSender{err: errors.New("network down")}
	p, err := NewUDPPublisher(time.Millisecond, snd, src)
	require.NoError(t, err)

	p.publish()
	assert.Equal(t, 0, snd.count())

	snd.mu.Lock()
	snd.err = nil
	snd.mu.Unlock()
	p.publish()
	assert.Equal(t, 1, snd.count(), "a failed frame should be sent again")
}

func TestUDPPublisher_StartStop(t *testing.T) {
	src := &stubSource{}
	src.set(testFrame(1))
	snd := &recordingSender{}
	p, err := NewUDPPublisher(2*time.Millisecond, snd, src)
	require.NoError(t, err)

	p.Start()
	p.Start() // no-op
	require.Eventually(t, func() bool { return snd.count() == 1 }, time.Second, time.Millisecond)

	src.set(testFrame(2))
	require.Eventually(t, func() bool { return snd.count() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	require.NoError(t, p.Close())

	src.set(testFrame(3))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 2, snd.count(), "no sends after Stop")
}

func TestUDPSender_DeliversDatagram(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	sender, err := NewUDPSender(listener.LocalAddr().String())
	require.NoError(t, err)

	want, err := AppendFrame(nil, testFrame(11))
	require.NoError(t, err)
	require.NoError(t, sender.Send(want))

	buf := make([]byte, 2048)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, want, buf[:n])

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send(want), ErrClosed)
}

func TestNewUDPSender_BadAddress(t *testing.T) {
	_, err := NewUDPSender("not an address")
	assert.Error(t, err)
}
