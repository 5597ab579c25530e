package keyevent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chase3718/keymatrix/internal/keyevent"
	"github.com/chase3718/keymatrix/internal/keymap"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for k := keymap.KeyIndex(0); int(k) < keymap.NumKeys; k++ {
		for _, edge := range []keyevent.Edge{keyevent.Pressed, keyevent.Released} {
			ev := keyevent.KeyEvent{Key: k, Edge: edge}
			got, err := keyevent.Decode(keyevent.Encode(ev))
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	assert.Equal(t, byte(0x96), keyevent.Encode(keyevent.KeyEvent{Key: 22, Edge: keyevent.Pressed}))
	assert.Equal(t, byte(0x16), keyevent.Encode(keyevent.KeyEvent{Key: 22, Edge: keyevent.Released}))
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	for _, b := range []byte{49, 0x7F, 0x80 | 49, 0xFF} {
		_, err := keyevent.Decode(b)
		assert.ErrorIs(t, err, keyevent.ErrInvalidKey, "byte 0x%02x", b)
	}
}

func TestMessage(t *testing.T) {
	var ch, key, vel uint8

	on := keyevent.KeyEvent{Key: 22, Edge: keyevent.Pressed}.Message()
	require.True(t, on.GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(0), ch)
	assert.Equal(t, uint8(keymap.Note(22)), key)
	assert.Equal(t, uint8(127), vel)
	assert.Equal(t, []byte{0x90, 34, 127}, []byte(on))

	off := keyevent.KeyEvent{Key: 22, Edge: keyevent.Released}.Message()
	require.True(t, off.GetNoteOff(&ch, &key, &vel))
	assert.Equal(t, uint8(keymap.Note(22)), key)
	assert.Equal(t, uint8(127), vel)
	assert.Equal(t, []byte{0x80, 34, 127}, []byte(off))
}

func TestEdgeOf(t *testing.T) {
	assert.Equal(t, keyevent.Pressed, keyevent.EdgeOf(true))
	assert.Equal(t, keyevent.Released, keyevent.EdgeOf(false))
	assert.Equal(t, "pressed", keyevent.Pressed.String())
}
