// Package usbmidi frames channel-voice messages as USB MIDI event packets and
// defines the transport the transmit loop drives.
package usbmidi

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Device identity reported during enumeration. The board build copies these
// into the USB device descriptor.
const (
	Product          = "MIDI Keys"
	VendorID  uint16 = 0x16c0
	ProductID uint16 = 0x05e4
)

// Cable is the only virtual cable the device exposes.
const Cable uint8 = 0

// Code index numbers for the channel-voice messages this device sends.
const (
	CINNoteOff uint8 = 0x8
	CINNoteOn  uint8 = 0x9
)

var (
	// ErrNotConnected is returned by a Transport that has no link to a host.
	ErrNotConnected = errors.New("usbmidi: not connected")

	// ErrUnsupported is returned by FromMessage for anything other than a
	// 3-byte NoteOn or NoteOff.
	ErrUnsupported = errors.New("usbmidi: unsupported message")
)

// Packet is a 4-byte USB MIDI event packet: header (cable<<4 | CIN) followed
// by the MIDI message, zero padded.
type Packet [4]byte

// FromMessage wraps msg for the given cable.
func FromMessage(cable uint8, msg midi.Message) (Packet, error) {
	if len(msg) != 3 {
		return Packet{}, fmt.Errorf("%w: % x", ErrUnsupported, []byte(msg))
	}
	cin := msg[0] >> 4
	if cin != CINNoteOn && cin != CINNoteOff {
		return Packet{}, fmt.Errorf("%w: % x", ErrUnsupported, []byte(msg))
	}
	return Packet{(cable&0x0F)<<4 | cin, msg[0], msg[1], msg[2]}, nil
}

// Cable returns the cable number from the header.
func (p Packet) Cable() uint8 {
	return p[0] >> 4
}

// CIN returns the code index number from the header.
func (p Packet) CIN() uint8 {
	return p[0] & 0x0F
}

// Message returns the MIDI message carried by p.
func (p Packet) Message() midi.Message {
	return midi.Message(p[1:4:4])
}

func (p Packet) String() string {
	return fmt.Sprintf("cable=%d cin=%X msg=%s", p.Cable(), p.CIN(), p.Message().String())
}

// Transport is the USB side of the device.
type Transport interface {
	// Poll services protocol traffic and must be called on every loop
	// iteration whether or not anything is waiting to be sent.
	Poll()

	// Send attempts to transmit one packet. Any error is treated as
	// transient by the caller.
	Send(p Packet) error
}
