//go:build tinygo && rp2040

// Firmware for the Raspberry Pi Pico build of the keyboard. The scan loop and
// the transmit loop both spin without yielding, so each needs its own core:
// build with TinyGo's multicore scheduler.
//
//	tinygo flash -target=pico -scheduler=cores ./cmd/keymatrix-pico
package main

import (
	"log/slog"
	"machine"
	"machine/usb"
	"machine/usb/adc/midi"

	"github.com/chase3718/keymatrix/internal/handoff"
	"github.com/chase3718/keymatrix/internal/keymap"
	"github.com/chase3718/keymatrix/internal/matrix"
	"github.com/chase3718/keymatrix/internal/spsc"
	"github.com/chase3718/keymatrix/internal/transmit"
	"github.com/chase3718/keymatrix/internal/usbmidi"
)

var (
	rowPins = [keymap.Rows]machine.Pin{
		machine.GPIO0, machine.GPIO1, machine.GPIO2, machine.GPIO3,
		machine.GPIO4, machine.GPIO5, machine.GPIO6,
	}
	colPins = [keymap.Cols]machine.Pin{
		machine.GPIO7, machine.GPIO8, machine.GPIO9, machine.GPIO10,
		machine.GPIO11, machine.GPIO12, machine.GPIO13, machine.GPIO14,
	}
)

var logger = slog.New(slog.NewTextHandler(machine.Serial, nil))

type packetWriter interface {
	Write(b []byte) (n int, err error)
}

// usbTransport writes packets to the MIDI IN endpoint. The TinyGo USB stack
// answers host traffic from its interrupt handler, so Poll has nothing to do.
type usbTransport struct {
	port packetWriter
}

func (usbTransport) Poll() {}

func (t usbTransport) Send(p usbmidi.Packet) error {
	_, err := t.port.Write(p[:])
	return err
}

func scanCore(mb *handoff.Mailbox, prod *spsc.Producer) {
	freq := mb.Read()
	delay, err := handoff.NewSpin(freq)
	if err != nil {
		panic(err)
	}

	rows := make([]matrix.OutputPin, len(rowPins))
	for i, p := range rowPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		rows[i] = p
	}
	cols := make([]matrix.InputPin, len(colPins))
	for i, p := range colPins {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		cols[i] = p
	}

	sc, err := matrix.New(rows, cols, delay, prod, logger)
	if err != nil {
		panic(err)
	}
	panic(sc.Run())
}

func main() {
	usb.Product = usbmidi.Product
	usb.VendorID = usbmidi.VendorID
	usb.ProductID = usbmidi.ProductID
	logger.Info("keymatrix-pico starting", "vid", usbmidi.VendorID, "pid", usbmidi.ProductID)

	prod, cons := spsc.New(spsc.DefaultCapacity)
	mb := handoff.NewMailbox()
	go scanCore(mb, prod)
	if err := mb.Write(machine.CPUFrequency()); err != nil {
		panic(err)
	}

	loop := transmit.New(cons, usbTransport{port: midi.Port()}, logger)
	panic(loop.Run())
}
