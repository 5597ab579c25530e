package seriallink

import (
	"errors"
	"fmt"

	"github.com/chase3718/keymatrix/internal/usbmidi"
)

const (
	SOF0          = 0xAA
	SOF1          = 0x55
	CmdMidiPacket = 0x20

	// FrameLen is the size of an encoded packet frame.
	FrameLen = 4 + len(usbmidi.Packet{}) + 1
)

// ErrBadFrame is returned by DecodeFrame for malformed input.
var ErrBadFrame = errors.New("seriallink: bad frame")

// EncodeFrame builds the on-wire representation of one USB MIDI packet:
//
//	[SOF0][SOF1][LEN][CMD][cin|cable][status][data1][data2][CKS]
//
// LEN counts CMD plus the payload, CKS is LEN ^ CMD ^ every payload byte.
func EncodeFrame(p usbmidi.Packet) []byte {
	length := byte(len(p) + 1) // +1 for CMD byte
	cks := length ^ CmdMidiPacket
	for _, b := range p {
		cks ^= b
	}

	out := make([]byte, 0, FrameLen)
	out = append(out, SOF0, SOF1, length, CmdMidiPacket)
	out = append(out, p[:]...)
	out = append(out, cks)
	return out
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte) (usbmidi.Packet, error) {
	var p usbmidi.Packet
	if len(b) != FrameLen {
		return p, fmt.Errorf("%w: length %d", ErrBadFrame, len(b))
	}
	if b[0] != SOF0 || b[1] != SOF1 {
		return p, fmt.Errorf("%w: start % x", ErrBadFrame, b[:2])
	}
	if int(b[2]) != len(p)+1 || b[3] != CmdMidiPacket {
		return p, fmt.Errorf("%w: header % x", ErrBadFrame, b[2:4])
	}
	cks := b[2] ^ b[3]
	for _, c := range b[4 : FrameLen-1] {
		cks ^= c
	}
	if cks != b[FrameLen-1] {
		return p, fmt.Errorf("%w: checksum %02x, want %02x", ErrBadFrame, b[FrameLen-1], cks)
	}
	copy(p[:], b[4:FrameLen-1])
	return p, nil
}
