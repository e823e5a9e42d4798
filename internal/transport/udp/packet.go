// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"tuner/internal/pitch"
	"tuner/internal/tuner"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------+
| Field      | Data Type | Size (Bytes) | Description                    |
|------------|-----------|--------------|--------------------------------|
| Sequence   | uint32    | 4            | Frame sequence number          |
| Timestamp  | int64     | 8            | Nanoseconds since epoch        |
| Anchor     | uint16    | 2            | Selected note bin              |
| Start      | uint16    | 2            | First bin in the window        |
| End        | uint16    | 2            | Last bin in the window         |
| Count      | uint16    | 2            | Number of energies (N)         |
| Energies   | []int32   | N * 4        | Histogram values Start..End    |
+------------------------------------------------------------------------+
*/

const headerSize = 4 + 8 + 2 + 2 + 2 + 2

var ErrShortPacket = errors.New("short UDP packet")

// Packet is the decoded form of one datagram.
type Packet struct {
	Seq    uint32
	Time   time.Time
	Anchor int
	Start  int
	End    int
	Bins   pitch.Histogram
}

// AppendFrame encodes f onto dst and returns the extended slice.
func AppendFrame(dst []byte, f tuner.Frame) ([]byte, error) {
	if len(f.Bins) > math.MaxUint16 || f.Start < 0 || f.End > math.MaxUint16 ||
		f.Anchor < 0 || f.Anchor > math.MaxUint16 {
		return dst, fmt.Errorf("frame %d does not fit the packet format", f.Seq)
	}

	dst = binary.BigEndian.AppendUint32(dst, f.Seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(f.Time.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.Anchor))
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.Start))
	dst = binary.BigEndian.AppendUint16(dst, uint16(max(f.End, 0)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(f.Bins)))
	for _, e := range f.Bins {
		dst = binary.BigEndian.AppendUint32(dst, uint32(e))
	}
	return dst, nil
}

// Decode parses one datagram.
func Decode(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	p := Packet{
		Seq:    binary.BigEndian.Uint32(b[0:]),
		Time:   time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		Anchor: int(binary.BigEndian.Uint16(b[12:])),
		Start:  int(binary.BigEndian.Uint16(b[14:])),
		End:    int(binary.BigEndian.Uint16(b[16:])),
	}
	count := int(binary.BigEndian.Uint16(b[18:]))
	body := b[headerSize:]
	if len(body) < 4*count {
		return Packet{}, fmt.Errorf("%w: want %d energies, have %d bytes", ErrShortPacket, count, len(body))
	}
	p.Bins = make(pitch.Histogram, count)
	for i := range p.Bins {
		p.Bins[i] = pitch.Energy(binary.BigEndian.Uint32(body[4*i:]))
	}
	return p, nil
}
