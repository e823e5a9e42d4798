// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"tuner/internal/pitch"
	"tuner/internal/tuner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(seq uint32) tuner.Frame {
	return tuner.Frame{
		Seq:    seq,
		Time:   time.Unix(1700000000, 123456789),
		Anchor: 200,
		Start:  185,
		End:    216,
		Bins:   pitch.Histogram{0, 1, 70000, -1},
	}
}

func TestAppendFrame_Layout(t *testing.T) {
	b, err := AppendFrame(nil, testFrame(9))
	require.NoError(t, err)
	require.Len(t, b, headerSize+4*4)

	assert.Equal(t, uint32(9), binary.BigEndian.Uint32(b[0:]))
	assert.Equal(t, uint64(1700000000123456789), binary.BigEndian.Uint64(b[4:]))
	assert.Equal(t, uint16(200), binary.BigEndian.Uint16(b[12:]))
	assert.Equal(t, uint16(185), binary.BigEndian.Uint16(b[14:]))
	assert.Equal(t, uint16(216), binary.BigEndian.Uint16(b[16:]))
	assert.Equal(t, uint16(4), binary.BigEndian.Uint16(b[18:]))
	assert.Equal(t, uint32(70000), binary.BigEndian.Uint32(b[headerSize+8:]))
}

func TestDecode_ReadsAppendFrame(t *testing.T) {
	f := testFrame(42)
	b, err := AppendFrame(make([]byte, 0, 64), f)
	require.NoError(t, err)

	p, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, f.Seq, p.Seq)
	assert.True(t, f.Time.Equal(p.Time))
	assert.Equal(t, int(f.Anchor), p.Anchor)
	assert.Equal(t, f.Start, p.Start)
	assert.Equal(t, f.End, p.End)
	assert.Equal(t, f.Bins, p.Bins)
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode(make([]byte, headerSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)

	b, err := AppendFrame(nil, testFrame(1))
	require.NoError(t, err)
	_, err = Decode(b[:len(b)-1])
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestAppendFrame_RejectsOutOfRangeFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*tuner.Frame)
	}{
		{"too many bins", func(f *tuner.Frame) { f.Bins = make(pitch.Histogram, 1<<16) }},
		{"negative start", func(f *tuner.Frame) { f.Start = -1 }},
		{"end past uint16", func(f *tuner.Frame) { f.End = math.MaxUint16 + 1 }},
		{"negative anchor", func(f *tuner.Frame) { f.Anchor = -1 }},
		{"anchor past uint16", func(f *tuner.Frame) { f.Anchor = math.MaxUint16 + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFrame(1)
			tt.mutate(&f)
			b, err := AppendFrame(nil, f)
			assert.Error(t, err)
			assert.Empty(t, b)
		})
	}

	f := testFrame(1)
	f.Anchor = math.MaxUint16
	b, err := AppendFrame(nil, f)
	require.NoError(t, err)
	p, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, math.MaxUint16, p.Anchor)
}
