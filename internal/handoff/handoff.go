// Package handoff carries the system clock frequency from the USB core to
// the scan core at startup, and builds the scan core's delay from it.
package handoff

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrMailboxUsed is returned by a second Write.
	ErrMailboxUsed = errors.New("handoff: mailbox already written")

	// ErrZeroFrequency means the clock was never brought up.
	ErrZeroFrequency = errors.New("handoff: zero system clock frequency")
)

// Mailbox passes a single uint32 from one core to the other. It is not reused
// after startup.
type Mailbox struct {
	written atomic.Bool
	ch      chan uint32
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan uint32, 1)}
}

// Write posts v. Only the first call succeeds.
func (m *Mailbox) Write(v uint32) error {
	if !m.written.CompareAndSwap(false, true) {
		return ErrMailboxUsed
	}
	m.ch <- v
	return nil
}

// Read blocks until the value has been written.
func (m *Mailbox) Read() uint32 {
	return <-m.ch
}

// Spin is a busy-wait delay. It never sleeps, so the core stays dedicated to
// the caller for the whole interval. Each loop iteration costs at least one
// core cycle, so spinning freq/1MHz iterations per microsecond waits at least
// that long on the core the frequency was measured on.
type Spin struct {
	freqHz uint32
	spun   uint64
}

// NewSpin sizes a delay for a core clocked at freqHz.
func NewSpin(freqHz uint32) (*Spin, error) {
	if freqHz == 0 {
		return nil, ErrZeroFrequency
	}
	return &Spin{freqHz: freqHz}, nil
}

// CyclesPerMicrosecond is the number of core clock ticks in one microsecond.
func (s *Spin) CyclesPerMicrosecond() uint32 {
	if c := s.freqHz / 1_000_000; c > 0 {
		return c
	}
	return 1
}

// Budget is the number of iterations DelayMicroseconds(us) spins.
func (s *Spin) Budget(us uint32) uint64 {
	return uint64(s.CyclesPerMicrosecond()) * uint64(us)
}

// DelayMicroseconds spins for Budget(us) iterations.
func (s *Spin) DelayMicroseconds(us uint32) {
	n := s.Budget(us)
	var i uint64
	for i < n {
		i++
	}
	s.spun += i
}

// Spun returns the total iterations spun so far. Call it from the goroutine
// that owns the Spin.
func (s *Spin) Spun() uint64 {
	return s.spun
}
