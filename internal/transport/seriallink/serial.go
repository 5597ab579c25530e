// Package seriallink carries USB MIDI packets to a bridge over a serial port.
package seriallink

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/chase3718/keymatrix/internal/usbmidi"
)

const DefaultReopenInterval = time.Second

// Opener opens the named serial device.
type Opener func(device string, baud int) (io.WriteCloser, error)

// OpenPort opens a real serial port with go.bug.st/serial.
func OpenPort(device string, baud int) (io.WriteCloser, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Ports lists the serial devices present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Link is a usbmidi.Transport that writes each packet as one frame. A write
// error closes the port; Poll reopens it once the reopen interval has passed.
type Link struct {
	device   string
	baud     int
	open     Opener
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	port       io.WriteCloser
	lastOpenAt time.Time
	seq        uint64
}

// New returns a closed link; the first Poll opens it.
func New(device string, baud int, open Opener, logger *slog.Logger) *Link {
	if open == nil {
		open = OpenPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		device:   device,
		baud:     baud,
		open:     open,
		interval: DefaultReopenInterval,
		now:      time.Now,
		log:      logger,
	}
}

// IsOpen reports whether the port is currently open.
func (l *Link) IsOpen() bool {
	return l.port != nil
}

// Poll (re)opens the port if it is closed and the reopen interval allows.
func (l *Link) Poll() {
	if l.port != nil {
		return
	}
	t := l.now()
	if !l.lastOpenAt.IsZero() && t.Sub(l.lastOpenAt) < l.interval {
		return
	}
	l.lastOpenAt = t

	p, err := l.open(l.device, l.baud)
	if err != nil {
		l.log.Error("serial: failed to open port", "device", l.device, "baud", l.baud, "err", err)
		return
	}
	l.port = p
	l.log.Info("serial: port opened", "device", l.device, "baud", l.baud)
}

// Send encodes and writes one packet frame.
func (l *Link) Send(p usbmidi.Packet) error {
	if l.port == nil {
		return usbmidi.ErrNotConnected
	}
	data := EncodeFrame(p)
	n, err := l.port.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		l.log.Error("serial: write error", "err", err)
		l.Close()
		return fmt.Errorf("serial: write: %w", err)
	}
	l.seq++
	l.log.Debug("serial: frame sent", "bytes", n, "seq", l.seq, "packet", p.String())
	return nil
}

// Close closes the underlying serial port.
func (l *Link) Close() {
	if l.port == nil {
		return
	}
	l.log.Info("serial: closing port", "device", l.device)
	_ = l.port.Close()
	l.port = nil
}
