// Package matrix scans the diode key matrix and turns key state changes into
// encoded events on the event queue.
package matrix

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chase3718/keymatrix/internal/keyevent"
	"github.com/chase3718/keymatrix/internal/keymap"
)

// SettleMicros is how long a strobed row is given to settle before each
// column is sampled.
const SettleMicros = 1

// ErrPinCount is returned by New when the pin slices do not match the matrix.
var ErrPinCount = errors.New("matrix: wrong number of pins")

// OutputPin drives one row strobe. machine.Pin satisfies it.
type OutputPin interface {
	High()
	Low()
}

// InputPin reads one pulled-up column. machine.Pin satisfies it.
type InputPin interface {
	Get() bool
}

// Delayer blocks the calling core for a number of microseconds without
// giving it up to other work.
type Delayer interface {
	DelayMicroseconds(us uint32)
}

// Sink receives encoded events. *spsc.Producer satisfies it.
type Sink interface {
	Push(b byte) error
}

// Scanner owns the rows, columns and the previous-scan snapshot.
type Scanner struct {
	rows  []OutputPin
	cols  []InputPin
	delay Delayer
	sink  Sink
	log   *slog.Logger

	// state has bit k set while key k is held.
	state  uint64
	cycles uint64
}

// New configures the row strobes to their idle (high) level and returns a
// scanner with an all-released snapshot.
func New(rows []OutputPin, cols []InputPin, delay Delayer, sink Sink, logger *slog.Logger) (*Scanner, error) {
	if len(rows) != keymap.Rows || len(cols) != keymap.Cols {
		return nil, fmt.Errorf("%w: %d rows, %d cols", ErrPinCount, len(rows), len(cols))
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, r := range rows {
		r.High()
	}
	return &Scanner{
		rows:  rows,
		cols:  cols,
		delay: delay,
		sink:  sink,
		log:   logger,
	}, nil
}

// Run scans forever. It only returns on a fatal error.
func (s *Scanner) Run() error {
	s.log.Info("matrix: scanning", "rows", len(s.rows), "cols", len(s.cols), "settle_us", SettleMicros)
	for {
		if err := s.Scan(); err != nil {
			return err
		}
	}
}

// Scan performs one pass over every row and column. A full event queue is
// fatal: the event cannot be dropped without breaking ordering, so Scan stops
// and returns the error.
func (s *Scanner) Scan() error {
	for r, row := range s.rows {
		row.Low()
		for c, col := range s.cols {
			s.delay.DelayMicroseconds(SettleMicros)
			k, ok := keymap.FromRaw(r*keymap.Cols + c)
			if !ok {
				continue
			}
			pressed := !col.Get()
			if s.held(k) == pressed {
				continue
			}
			s.set(k, pressed)
			ev := keyevent.KeyEvent{Key: k, Edge: keyevent.EdgeOf(pressed)}
			if err := s.sink.Push(keyevent.Encode(ev)); err != nil {
				row.High()
				return fmt.Errorf("matrix: queue %v: %w", ev, err)
			}
			s.log.Debug("matrix: edge", "key", uint8(k), "note", keymap.Name(k), "edge", ev.Edge)
		}
		row.High()
	}
	s.cycles++
	return nil
}

// Cycles returns the number of completed scans.
func (s *Scanner) Cycles() uint64 {
	return s.cycles
}

func (s *Scanner) held(k keymap.KeyIndex) bool {
	return s.state&(1<<k) != 0
}

func (s *Scanner) set(k keymap.KeyIndex, pressed bool) {
	if pressed {
		s.state |= 1 << k
	} else {
		s.state &^= 1 << k
	}
}
