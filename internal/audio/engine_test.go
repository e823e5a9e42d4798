// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"sync"
	"testing"

	"tuner/internal/capture"
	"tuner/internal/config"
)

// recorder is a Writer that keeps every sample it is given.
type recorder struct {
	mu      sync.Mutex
	samples []capture.Sample
	writes  int
}

func (r *recorder) Write(samples []capture.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, samples...)
	r.writes++
}

func (r *recorder) snapshot() ([]capture.Sample, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Sample(nil), r.samples...), r.writes
}

// discard is a Writer that drops everything.
type discard struct{}

func (discard) Write([]capture.Sample) {}

func testAudioConfig(channels int) config.AudioConfig {
	cfg := config.Default().Audio
	cfg.Channels = channels
	cfg.FramesPerBuffer = testFrameSize
	return cfg
}

func TestProcessInputStream_Mono(t *testing.T) {
	rec := &recorder{}
	e := NewEngine(testAudioConfig(1), rec)

	in := []int16{1, -2, 3, -4}
	e.processInputStream(in)

	got, writes := rec.snapshot()
	if writes != 1 || len(got) != 4 || got[1] != -2 {
		t.Errorf("mono callback wrote %v in %d writes", got, writes)
	}
}

func TestProcessInputStream_KeepsFirstChannel(t *testing.T) {
	rec := &recorder{}
	e := NewEngine(testAudioConfig(2), rec)

	e.processInputStream([]int16{10, -10, 20, -20, 30, -30})

	got, _ := rec.snapshot()
	want := []capture.Sample{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestProcessInputStreamHotPath(t *testing.T) {
	e := NewEngine(testAudioConfig(2), discard{})
	in := make([]int16, 2*testFrameSize)

	allocs := testing.AllocsPerRun(100, func() {
		e.processInputStream(in)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in input callback, got %.1f", allocs)
	}
}

func TestEngineStopWhenIdle(t *testing.T) {
	e := NewEngine(testAudioConfig(1), discard{})
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on idle engine: %v", err)
	}
}

func TestDecodeS16(t *testing.T) {
	frames := []int16{100, -1, -32768, 5, 32767, 7}
	raw := make([]byte, 2*len(frames))
	for i, v := range frames {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}

	mono := decodeS16(nil, raw, 1)
	if len(mono) != 6 || mono[1] != -1 || mono[2] != -32768 {
		t.Errorf("mono decode = %v", mono)
	}

	stereo := decodeS16(mono, raw, 2)
	want := []capture.Sample{100, -32768, 32767}
	for i := range want {
		if stereo[i] != want[i] {
			t.Errorf("stereo frame %d = %d, want %d", i, stereo[i], want[i])
		}
	}

	// A trailing partial frame is ignored.
	if got := decodeS16(nil, raw[:5], 1); len(got) != 2 {
		t.Errorf("partial frame decoded to %d samples", len(got))
	}
}

func TestMalgoDataCallback(t *testing.T) {
	rec := &recorder{}
	m := NewMalgoSource(testAudioConfig(1), rec)

	raw := []byte{0x01, 0x00, 0xff, 0xff}
	m.onData(nil, raw, 2)
	m.onData(nil, nil, 0)

	got, writes := rec.snapshot()
	if writes != 1 || len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("callback wrote %v in %d writes", got, writes)
	}
}

func BenchmarkProcessInputStream(b *testing.B) {
	ring, err := capture.NewRing(capture.DefaultCapacity)
	if err != nil {
		b.Fatal(err)
	}
	e := NewEngine(testAudioConfig(2), ring)
	in := make([]int16, 2*testFrameSize)

	b.ReportAllocs()
	for b.Loop() {
		e.processInputStream(in)
	}
}
