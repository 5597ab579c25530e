// Package rtmidi sends the key pipeline's output to a MIDI output port on the
// host, following the port across unplug and replug.
package rtmidi

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/keymatrix/internal/usbmidi"
)

// DefaultExcluded lists virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

const DefaultRescanInterval = 1000 * time.Millisecond

// Output is the part of a driver output port the watcher uses.
// drivers.Out satisfies it.
type Output interface {
	Open() error
	Close() error
	Send(data []byte) error
	String() string
}

// Options configures port selection.
type Options struct {
	// Preferred patterns are matched case-insensitively, in order.
	Preferred []string
	// Excluded patterns are never connected.
	Excluded []string
	// RescanInterval rate-limits port enumeration. Zero means
	// DefaultRescanInterval.
	RescanInterval time.Duration
}

// Watcher is a usbmidi.Transport backed by a host MIDI output port. Poll
// scans for ports, connects to a preferred one and notices when it goes
// away; Send fails with usbmidi.ErrNotConnected while no port is open.
//
// A Watcher belongs to the goroutine running the transmit loop.
type Watcher struct {
	list      func() ([]Output, error)
	closeDrv  func() error
	preferred []string
	excluded  []string
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger

	out          Output
	connected    bool
	selectedName string
	lastRescanAt time.Time
}

// Open initialises the rtmidi driver and returns a watcher on its outputs.
// Call Close() when done.
func Open(opts Options, logger *slog.Logger) (*Watcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	list := func() ([]Output, error) {
		outs, err := drv.Outs()
		if err != nil {
			return nil, err
		}
		return toOutputs(outs), nil
	}
	w := NewWatcher(list, opts, logger)
	w.closeDrv = func() error {
		drv.Close()
		return nil
	}
	return w, nil
}

// OutputNames lists every output port the rtmidi driver can see, excluded
// ones included.
func OutputNames() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	outs, err := drv.Outs()
	if err != nil {
		return nil, err
	}
	res := make([]string, len(outs))
	for i, o := range outs {
		res[i] = o.String()
	}
	return res, nil
}

func toOutputs(outs []drivers.Out) []Output {
	res := make([]Output, len(outs))
	for i, o := range outs {
		res[i] = o
	}
	return res
}

// NewWatcher builds a watcher over an arbitrary port lister.
func NewWatcher(list func() ([]Output, error), opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Excluded == nil {
		opts.Excluded = DefaultExcluded
	}
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = DefaultRescanInterval
	}
	return &Watcher{
		list:      list,
		preferred: opts.Preferred,
		excluded:  opts.Excluded,
		interval:  opts.RescanInterval,
		now:       time.Now,
		log:       logger,
	}
}

// Connected reports whether an output port is open, and which.
func (w *Watcher) Connected() (string, bool) {
	return w.selectedName, w.connected
}

// Close shuts down the active connection and the driver.
func (w *Watcher) Close() {
	w.closeConn()
	if w.closeDrv != nil {
		_ = w.closeDrv()
	}
}

// Poll scans for ports at most once per rescan interval.
func (w *Watcher) Poll() {
	t := w.now()
	if !w.lastRescanAt.IsZero() && t.Sub(w.lastRescanAt) < w.interval {
		return
	}
	w.lastRescanAt = t

	outputs := w.listOutputs()

	if w.connected {
		for _, o := range outputs {
			if o.String() == w.selectedName {
				return // still there, nothing to do
			}
		}
		w.log.Warn("rtmidi: output disappeared", "device", w.selectedName)
		w.closeConn()
		// fall through and try another port right away
	}

	if len(outputs) == 0 {
		return
	}
	cand, ok := w.pickPreferred(outputs)
	if !ok {
		w.log.Debug("rtmidi: no preferred output found", "available", names(outputs))
		return
	}
	if err := w.open(cand); err != nil {
		w.log.Error("rtmidi: connect failed", "device", cand.String(), "err", err)
	}
}

// Send writes the packet's MIDI message to the open port. A failed write
// drops the connection so the next Poll rescans immediately.
func (w *Watcher) Send(p usbmidi.Packet) error {
	if !w.connected {
		return usbmidi.ErrNotConnected
	}
	if err := w.out.Send(p.Message()); err != nil {
		w.log.Warn("rtmidi: send error, dropping connection", "device", w.selectedName, "err", err)
		w.closeConn()
		w.lastRescanAt = time.Time{}
		return fmt.Errorf("rtmidi: send: %w", err)
	}
	return nil
}

// -------------------- internal --------------------

func (w *Watcher) listOutputs() []Output {
	outs, err := w.list()
	if err != nil {
		w.log.Error("rtmidi: list outputs failed", "err", err)
		return nil
	}
	var res []Output
	for _, o := range outs {
		name := o.String()
		excluded := false
		for _, pat := range w.excluded {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			w.log.Debug("rtmidi: output excluded", "device", name)
		} else {
			res = append(res, o)
		}
	}
	return res
}

func (w *Watcher) pickPreferred(outputs []Output) (Output, bool) {
	for _, pat := range w.preferred {
		for _, o := range outputs {
			if containsCI(o.String(), pat) {
				return o, true
			}
		}
	}
	if len(outputs) == 1 {
		return outputs[0], true
	}
	return nil, false
}

func (w *Watcher) open(o Output) error {
	name := o.String()
	if err := o.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	w.out = o
	w.connected = true
	w.selectedName = name
	w.log.Info("rtmidi: connected", "device", name)
	return nil
}

func (w *Watcher) closeConn() {
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	if w.connected {
		w.log.Info("rtmidi: connection closed", "device", w.selectedName)
	}
	w.connected = false
	w.selectedName = ""
}

// -------------------- utility --------------------

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func names(outputs []Output) string {
	n := make([]string, len(outputs))
	for i, o := range outputs {
		n[i] = o.String()
	}
	return strings.Join(n, ", ")
}
