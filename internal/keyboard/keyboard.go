//go:build linux

// Package keyboard lets a computer keyboard stand in for the key matrix on a
// host: evdev key presses close and open switches on the matrix model.
package keyboard

import (
	"fmt"
	"log/slog"

	"github.com/holoplot/go-evdev"

	"github.com/chase3718/keymatrix/internal/keymap"
)

// Switches is the matrix model the keyboard drives. *hostmatrix.Matrix
// satisfies it.
type Switches interface {
	Press(k keymap.KeyIndex)
	Release(k keymap.KeyIndex)
}

// Two-row piano layout: the bottom letter row plays from C0, the top letter
// row (with the number row as black keys) from C2.
var (
	lowerRow = []evdev.EvCode{
		evdev.KEY_Z, evdev.KEY_S, evdev.KEY_X, evdev.KEY_D, evdev.KEY_C,
		evdev.KEY_V, evdev.KEY_G, evdev.KEY_B, evdev.KEY_H, evdev.KEY_N,
		evdev.KEY_J, evdev.KEY_M, evdev.KEY_COMMA, evdev.KEY_L, evdev.KEY_DOT,
		evdev.KEY_SEMICOLON, evdev.KEY_SLASH,
	}
	upperRow = []evdev.EvCode{
		evdev.KEY_Q, evdev.KEY_2, evdev.KEY_W, evdev.KEY_3, evdev.KEY_E,
		evdev.KEY_R, evdev.KEY_5, evdev.KEY_T, evdev.KEY_6, evdev.KEY_Y,
		evdev.KEY_7, evdev.KEY_U, evdev.KEY_I, evdev.KEY_9, evdev.KEY_O,
		evdev.KEY_0, evdev.KEY_P, evdev.KEY_LEFTBRACE, evdev.KEY_EQUAL,
		evdev.KEY_RIGHTBRACE,
	}
	upperRowStart keymap.KeyIndex = 24
)

// Layout maps evdev key codes to keys.
var Layout = func() map[evdev.EvCode]keymap.KeyIndex {
	m := make(map[evdev.EvCode]keymap.KeyIndex, len(lowerRow)+len(upperRow))
	for i, code := range lowerRow {
		m[code] = keymap.KeyIndex(i)
	}
	for i, code := range upperRow {
		m[code] = upperRowStart + keymap.KeyIndex(i)
	}
	return m
}()

const (
	valueRelease = 0
	valuePress   = 1
)

// Apply updates sw for one input event. It reports whether the event touched
// a mapped key. Auto-repeat events are ignored: the switch is already closed.
func Apply(ev *evdev.InputEvent, sw Switches) bool {
	if ev.Type != evdev.EV_KEY {
		return false
	}
	k, ok := Layout[ev.Code]
	if !ok {
		return false
	}
	switch ev.Value {
	case valuePress:
		sw.Press(k)
	case valueRelease:
		sw.Release(k)
	default:
		return false
	}
	return true
}

// Source reads key events from one evdev device.
type Source struct {
	dev  *evdev.InputDevice
	path string
	log  *slog.Logger
}

// Open opens the evdev device at path, e.g. /dev/input/event3.
func Open(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keyboard: open %s: %w", path, err)
	}
	name, _ := dev.Name()
	logger.Info("keyboard: input opened", "device", path, "name", name, "mapped_keys", len(Layout))
	return &Source{dev: dev, path: path, log: logger}, nil
}

// Run forwards key events to sw until the device fails.
func (s *Source) Run(sw Switches) error {
	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			return fmt.Errorf("keyboard: read %s: %w", s.path, err)
		}
		if Apply(ev, sw) {
			s.log.Debug("keyboard: key", "code", ev.Code, "value", ev.Value, "key", Layout[ev.Code].String())
		}
	}
}

func (s *Source) Close() error {
	return s.dev.Close()
}
