// Package keyevent defines the key transition that crosses from the scan core
// to the USB core, and its one-byte wire form.
package keyevent

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/chase3718/keymatrix/internal/keymap"
)

const (
	edgeBit  = 1 << 7
	indexMsk = 0x7F

	// Channel is the zero-based MIDI channel every message is sent on
	// (channel 1 on the wire display).
	Channel uint8 = 0

	// Velocity is fixed; the keys are not velocity sensitive.
	Velocity uint8 = 127
)

// ErrInvalidKey is returned by Decode for a byte whose key index does not
// name a physical key.
var ErrInvalidKey = errors.New("keyevent: key index out of range")

// Edge is the direction of a key transition.
type Edge uint8

const (
	Released Edge = iota
	Pressed
)

func (e Edge) String() string {
	if e == Pressed {
		return "pressed"
	}
	return "released"
}

// EdgeOf returns Pressed for a pressed reading and Released otherwise.
func EdgeOf(pressed bool) Edge {
	if pressed {
		return Pressed
	}
	return Released
}

// KeyEvent is one detected change of a key's electrical state.
type KeyEvent struct {
	Key  keymap.KeyIndex
	Edge Edge
}

func (ev KeyEvent) String() string {
	return fmt.Sprintf("%v %v", ev.Key, ev.Edge)
}

// Encode packs ev into one byte: bit 7 is the edge (1 = pressed), bits 0-6
// are the key index.
func Encode(ev KeyEvent) byte {
	b := byte(ev.Key) & indexMsk
	if ev.Edge == Pressed {
		b |= edgeBit
	}
	return b
}

// Decode is the inverse of Encode. A key index outside the key map is never
// produced by the scanner, so an error here means the channel is corrupt.
func Decode(b byte) (KeyEvent, error) {
	k := keymap.KeyIndex(b & indexMsk)
	if !k.Valid() {
		return KeyEvent{}, fmt.Errorf("%w: byte 0x%02x", ErrInvalidKey, b)
	}
	edge := Released
	if b&edgeBit != 0 {
		edge = Pressed
	}
	return KeyEvent{Key: k, Edge: edge}, nil
}

// Message builds the channel-voice message for ev: NoteOn on press, NoteOff
// on release, both at full velocity.
func (ev KeyEvent) Message() midi.Message {
	key := uint8(keymap.Note(ev.Key))
	if ev.Edge == Pressed {
		return midi.NoteOn(Channel, key, Velocity)
	}
	return midi.NoteOffVelocity(Channel, key, Velocity)
}
