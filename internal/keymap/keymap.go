// Package keymap translates physical key positions on the diode matrix into
// musical notes.
package keymap

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

const (
	Rows = 7
	Cols = 8

	// SkippedPositions is the number of raw scan indices at the start of the
	// matrix that have no key wired to them.
	SkippedPositions = 4

	// NumKeys is the number of physical keys on the board. The last three
	// positions of the bottom row are unwired, like the first four.
	NumKeys = 49
)

// KeyIndex identifies one physical key, 0..NumKeys-1.
type KeyIndex uint8

// Valid reports whether k names a physical key.
func (k KeyIndex) Valid() bool {
	return int(k) < NumKeys
}

func (k KeyIndex) String() string {
	return fmt.Sprintf("key%d(%s)", uint8(k), Name(k))
}

// notes spans C0..C4, one semitone per key. 12 is C0 in the numbering where
// middle C (60) is C4.
var notes = func() [NumKeys]midi.Note {
	var n [NumKeys]midi.Note
	for i := range n {
		n[i] = midi.Note(12 + i)
	}
	return n
}()

// Note returns the note played by k. k must be valid; callers obtain a
// KeyIndex from FromRaw or keyevent.Decode, both of which reject anything
// out of range.
func Note(k KeyIndex) midi.Note {
	return notes[k]
}

// FromRaw converts a raw scan index (row*Cols + col) into a KeyIndex. ok is
// false for the unwired positions and for anything past the last key.
func FromRaw(raw int) (k KeyIndex, ok bool) {
	if raw < SkippedPositions || raw >= SkippedPositions+NumKeys {
		return 0, false
	}
	return KeyIndex(raw - SkippedPositions), true
}

// FromPosition converts a matrix position into a KeyIndex.
func FromPosition(row, col int) (KeyIndex, bool) {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return 0, false
	}
	return FromRaw(row*Cols + col)
}

// Position is the inverse of FromPosition.
func Position(k KeyIndex) (row, col int) {
	raw := int(k) + SkippedPositions
	return raw / Cols, raw % Cols
}

// -------------------- Pitch helpers --------------------

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name returns a human readable pitch name such as "C#2" for the note k plays.
func Name(k KeyIndex) string {
	if !k.Valid() {
		return fmt.Sprintf("?%d", uint8(k))
	}
	pitch := int(Note(k))
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}
