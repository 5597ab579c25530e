// Package transmit runs the USB side of the key pipeline: it drains the event
// queue one event at a time and only removes an event once the host has
// accepted it.
package transmit

import (
	"fmt"
	"log/slog"

	"github.com/chase3718/keymatrix/internal/keyevent"
	"github.com/chase3718/keymatrix/internal/keymap"
	"github.com/chase3718/keymatrix/internal/usbmidi"
)

// Source is the consumer half of the event queue. *spsc.Consumer satisfies
// it.
type Source interface {
	Peek() (byte, bool)
	Pop()
}

// Stats counts send attempts.
type Stats struct {
	Sent   uint64
	Failed uint64
}

// Loop owns the transport and the consumer half of the queue.
type Loop struct {
	src   Source
	tr    usbmidi.Transport
	log   *slog.Logger
	stats Stats

	// streak counts consecutive failed sends. Only the first of a streak
	// is logged at Error; the rest go to Debug.
	streak uint64
}

func New(src Source, tr usbmidi.Transport, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{src: src, tr: tr, log: logger}
}

// Run services the transport forever. It only returns on a fatal error.
func (l *Loop) Run() error {
	l.log.Info("transmit: running")
	for {
		if err := l.Tick(); err != nil {
			return err
		}
	}
}

// Tick is one loop iteration: service the transport, then make at most one
// send attempt for the event at the head of the queue. A failed send leaves
// the event in place for the next Tick. The only error returned is a queue
// byte that does not decode, which is fatal.
func (l *Loop) Tick() error {
	l.tr.Poll()

	b, ok := l.src.Peek()
	if !ok {
		return nil
	}
	ev, err := keyevent.Decode(b)
	if err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	p, err := usbmidi.FromMessage(usbmidi.Cable, ev.Message())
	if err != nil {
		return fmt.Errorf("transmit: %w", err)
	}

	if err := l.tr.Send(p); err != nil {
		l.stats.Failed++
		l.streak++
		if l.streak == 1 {
			l.log.Error("transmit: send failed", "byte", b, "event", ev.String(), "err", err)
		} else {
			l.log.Debug("transmit: send failed", "byte", b, "event", ev.String(), "err", err, "streak", l.streak)
		}
		return nil
	}
	if l.streak > 0 {
		l.log.Info("transmit: send recovered", "failed_attempts", l.streak)
		l.streak = 0
	}
	l.src.Pop()
	l.stats.Sent++
	l.log.Info("transmit: sent", "byte", b, "key", uint8(ev.Key), "note", keymap.Name(ev.Key), "edge", ev.Edge.String())
	return nil
}

// Stats returns the attempt counters. It must be called from the goroutine
// running the loop.
func (l *Loop) Stats() Stats {
	return l.stats
}
