package transmit_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chase3718/keymatrix/internal/hostmatrix"
	"github.com/chase3718/keymatrix/internal/keyevent"
	"github.com/chase3718/keymatrix/internal/keymap"
	"github.com/chase3718/keymatrix/internal/matrix"
	"github.com/chase3718/keymatrix/internal/spsc"
	"github.com/chase3718/keymatrix/internal/transmit"
	"github.com/chase3718/keymatrix/internal/usbmidi"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var errBusy = errors.New("endpoint busy")

// fakeTransport fails the next `fail` sends, then accepts everything.
type fakeTransport struct {
	polls     int
	attempts  int
	fail      int
	delivered []usbmidi.Packet
}

func (f *fakeTransport) Poll() { f.polls++ }

func (f *fakeTransport) Send(p usbmidi.Packet) error {
	f.attempts++
	if f.fail > 0 {
		f.fail--
		return errBusy
	}
	f.delivered = append(f.delivered, p)
	return nil
}

func push(t *testing.T, prod *spsc.Producer, k keymap.KeyIndex, e keyevent.Edge) {
	require.NoError(t, prod.Push(keyevent.Encode(keyevent.KeyEvent{Key: k, Edge: e})))
}

func TestIdleTickStillPolls(t *testing.T) {
	_, cons := spsc.New(spsc.DefaultCapacity)
	tr := &fakeTransport{}
	l := transmit.New(cons, tr, quiet)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Tick())
	}
	assert.Equal(t, 5, tr.polls)
	assert.Equal(t, 0, tr.attempts)
}

func TestOneAttemptPerTick(t *testing.T) {
	prod, cons := spsc.New(spsc.DefaultCapacity)
	push(t, prod, 1, keyevent.Pressed)
	push(t, prod, 2, keyevent.Pressed)
	tr := &fakeTransport{}
	l := transmit.New(cons, tr, quiet)

	require.NoError(t, l.Tick())
	assert.Equal(t, 1, tr.attempts)
	assert.Equal(t, 1, cons.Len())
}

func TestRetryWithoutDuplication(t *testing.T) {
	const failures = 5
	prod, cons := spsc.New(spsc.DefaultCapacity)
	push(t, prod, 22, keyevent.Pressed)
	push(t, prod, 22, keyevent.Released)
	tr := &fakeTransport{fail: failures}
	l := transmit.New(cons, tr, quiet)

	for i := 0; i < failures; i++ {
		require.NoError(t, l.Tick())
		assert.Equal(t, 2, cons.Len(), "event popped after failed send")
	}
	require.NoError(t, l.Tick())
	require.NoError(t, l.Tick())
	require.NoError(t, l.Tick())

	assert.Equal(t, failures+2, tr.attempts)
	require.Len(t, tr.delivered, 2)
	note := uint8(keymap.Note(22))
	assert.Equal(t, usbmidi.Packet{0x09, 0x90, note, 127}, tr.delivered[0])
	assert.Equal(t, usbmidi.Packet{0x08, 0x80, note, 127}, tr.delivered[1])
	assert.Equal(t, transmit.Stats{Sent: 2, Failed: failures}, l.Stats())
	assert.Equal(t, 0, cons.Len())
}

func TestInvalidByteIsFatal(t *testing.T) {
	prod, cons := spsc.New(spsc.DefaultCapacity)
	require.NoError(t, prod.Push(0x80|60))
	tr := &fakeTransport{}
	l := transmit.New(cons, tr, quiet)

	err := l.Tick()
	require.ErrorIs(t, err, keyevent.ErrInvalidKey)
	assert.Equal(t, 0, tr.attempts)
	assert.Equal(t, 1, cons.Len())

	assert.ErrorIs(t, l.Run(), keyevent.ErrInvalidKey)
}

func TestFailureStreakLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	prod, cons := spsc.New(spsc.DefaultCapacity)
	push(t, prod, 5, keyevent.Pressed)
	tr := &fakeTransport{fail: 100}
	l := transmit.New(cons, tr, logger)

	for i := 0; i < 101; i++ {
		require.NoError(t, l.Tick())
	}

	var errs, debugs, recovered int
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, "level=ERROR") && strings.Contains(line, "send failed"):
			errs++
		case strings.Contains(line, "level=DEBUG") && strings.Contains(line, "send failed"):
			debugs++
		case strings.Contains(line, "send recovered"):
			recovered++
			assert.Contains(t, line, "failed_attempts=100")
		}
	}
	assert.Equal(t, 1, errs)
	assert.Equal(t, 99, debugs)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, transmit.Stats{Sent: 1, Failed: 100}, l.Stats())

	// a later outage starts a new streak
	push(t, prod, 5, keyevent.Released)
	tr.fail = 2
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Tick())
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "level=ERROR"))
}

// TestPipelineOrder runs the scanner and the transmit loop back to back on
// the host matrix model and checks delivery order end to end.
func TestPipelineOrder(t *testing.T) {
	m := hostmatrix.New()
	prod, cons := spsc.New(spsc.DefaultCapacity)
	sc, err := matrix.New(m.Rows(), m.Cols(), noDelay{}, prod, quiet)
	require.NoError(t, err)
	tr := &fakeTransport{fail: 3}
	l := transmit.New(cons, tr, quiet)

	m.SetSwitch(3, 2, true)
	require.NoError(t, sc.Scan())
	m.Press(0)
	require.NoError(t, sc.Scan())
	m.SetSwitch(3, 2, false)
	m.Release(0)
	require.NoError(t, sc.Scan())

	for cons.Len() > 0 {
		require.NoError(t, l.Tick())
	}

	var got []string
	for _, p := range tr.delivered {
		var ch, key, vel uint8
		kind := "?"
		switch {
		case p.Message().GetNoteOn(&ch, &key, &vel):
			kind = "on"
		case p.Message().GetNoteOff(&ch, &key, &vel):
			kind = "off"
		}
		assert.Equal(t, uint8(0), ch)
		assert.Equal(t, uint8(127), vel)
		got = append(got, fmt.Sprintf("%s %d", kind, key))
	}
	assert.Equal(t, []string{"on 34", "on 12", "off 12", "off 34"}, got)
}

type noDelay struct{}

func (noDelay) DelayMicroseconds(uint32) {}
