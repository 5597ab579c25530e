package usbmidi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/chase3718/keymatrix/internal/usbmidi"
)

func TestFromMessageNoteOn(t *testing.T) {
	p, err := usbmidi.FromMessage(usbmidi.Cable, midi.NoteOn(0, 34, 127))
	require.NoError(t, err)
	assert.Equal(t, usbmidi.Packet{0x09, 0x90, 34, 127}, p)
	assert.Equal(t, uint8(0), p.Cable())
	assert.Equal(t, usbmidi.CINNoteOn, p.CIN())

	var ch, key, vel uint8
	require.True(t, p.Message().GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(34), key)
}

func TestFromMessageNoteOff(t *testing.T) {
	p, err := usbmidi.FromMessage(usbmidi.Cable, midi.NoteOffVelocity(0, 12, 127))
	require.NoError(t, err)
	assert.Equal(t, usbmidi.Packet{0x08, 0x80, 12, 127}, p)
}

func TestFromMessageCableNumber(t *testing.T) {
	p, err := usbmidi.FromMessage(3, midi.NoteOn(1, 60, 100))
	require.NoError(t, err)
	assert.Equal(t, usbmidi.Packet{0x39, 0x91, 60, 100}, p)
	assert.Equal(t, uint8(3), p.Cable())
}

func TestFromMessageRejectsOtherMessages(t *testing.T) {
	_, err := usbmidi.FromMessage(0, midi.ControlChange(0, 7, 100))
	assert.ErrorIs(t, err, usbmidi.ErrUnsupported)

	_, err = usbmidi.FromMessage(0, midi.ProgramChange(0, 5))
	assert.ErrorIs(t, err, usbmidi.ErrUnsupported)
}

func TestDeviceIdentity(t *testing.T) {
	// same shape as the USB stack's descriptor variables
	var (
		product  string = usbmidi.Product
		vid, pid uint16 = usbmidi.VendorID, usbmidi.ProductID
	)
	assert.Equal(t, "MIDI Keys", product)
	assert.Equal(t, uint16(0x16c0), vid)
	assert.Equal(t, uint16(0x05e4), pid)
}
