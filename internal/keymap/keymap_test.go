package keymap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chase3718/keymatrix/internal/keymap"
)

func TestNumKeys(t *testing.T) {
	assert.Equal(t, 49, keymap.NumKeys)
}

func TestNoteTableIsBijective(t *testing.T) {
	seen := map[uint8]keymap.KeyIndex{}
	for k := keymap.KeyIndex(0); int(k) < keymap.NumKeys; k++ {
		n := uint8(keymap.Note(k))
		prev, dup := seen[n]
		require.Falsef(t, dup, "note %d mapped by %v and %v", n, prev, k)
		seen[n] = k
	}
	assert.Len(t, seen, keymap.NumKeys)
}

func TestNoteRange(t *testing.T) {
	assert.Equal(t, uint8(12), uint8(keymap.Note(0)))
	assert.Equal(t, uint8(60), uint8(keymap.Note(48)))
	assert.Equal(t, "C0", keymap.Name(0))
	assert.Equal(t, "A#1", keymap.Name(22))
	assert.Equal(t, "C4", keymap.Name(48))
}

func TestFromRawSkipsUnwiredPositions(t *testing.T) {
	for raw := 0; raw < keymap.SkippedPositions; raw++ {
		_, ok := keymap.FromRaw(raw)
		assert.False(t, ok, "raw %d", raw)
	}
	k, ok := keymap.FromRaw(4)
	require.True(t, ok)
	assert.Equal(t, keymap.KeyIndex(0), k)

	k, ok = keymap.FromRaw(52)
	require.True(t, ok)
	assert.Equal(t, keymap.KeyIndex(48), k)

	for raw := 53; raw <= 56; raw++ {
		_, ok = keymap.FromRaw(raw)
		assert.False(t, ok, "raw %d", raw)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	k, ok := keymap.FromPosition(3, 2)
	require.True(t, ok)
	assert.Equal(t, keymap.KeyIndex(22), k)

	for k := keymap.KeyIndex(0); int(k) < keymap.NumKeys; k++ {
		row, col := keymap.Position(k)
		got, ok := keymap.FromPosition(row, col)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}

	_, ok = keymap.FromPosition(7, 0)
	assert.False(t, ok)
	_, ok = keymap.FromPosition(0, -1)
	assert.False(t, ok)
}

func TestValid(t *testing.T) {
	assert.True(t, keymap.KeyIndex(48).Valid())
	assert.False(t, keymap.KeyIndex(49).Valid())
	assert.Equal(t, "?49", keymap.Name(49))
}
