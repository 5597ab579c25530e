package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/chase3718/keymatrix/internal/config"
	"github.com/chase3718/keymatrix/internal/handoff"
	"github.com/chase3718/keymatrix/internal/hostmatrix"
	"github.com/chase3718/keymatrix/internal/matrix"
	"github.com/chase3718/keymatrix/internal/spsc"
	"github.com/chase3718/keymatrix/internal/transmit"
	"github.com/chase3718/keymatrix/internal/transport/rtmidi"
	"github.com/chase3718/keymatrix/internal/transport/seriallink"
	"github.com/chase3718/keymatrix/internal/usbmidi"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// halt stops the whole device. There is no degraded mode: a scanner that
// cannot queue a key or a corrupt queue leaves nothing worth running.
func halt(component string, err error) {
	logger.Error("halted", "component", component, "err", err)
	os.Exit(1)
}

// -------------------- Stats --------------------

// every fires at most once per interval. A zero interval never fires.
type every struct {
	interval time.Duration
	next     time.Time
}

func (e *every) due(now time.Time) bool {
	if e.interval <= 0 {
		return false
	}
	if e.next.IsZero() {
		e.next = now.Add(e.interval)
		return false
	}
	if now.Before(e.next) {
		return false
	}
	e.next = now.Add(e.interval)
	return true
}

// -------------------- Cores --------------------

// scanCore is the dedicated scanning context. It waits for the clock
// frequency from the mailbox, sizes its delay from it and scans forever.
// Counters are read here because the scanner belongs to this goroutine.
func scanCore(mb *handoff.Mailbox, m *hostmatrix.Matrix, prod *spsc.Producer, statsEvery time.Duration) {
	runtime.LockOSThread()

	freq := mb.Read()
	delay, err := handoff.NewSpin(freq)
	if err != nil {
		halt("scan", err)
	}
	logger.Info("scan: core started", "sys_freq_hz", freq, "cycles_per_us", delay.CyclesPerMicrosecond())

	sc, err := matrix.New(m.Rows(), m.Cols(), delay, prod, logger)
	if err != nil {
		halt("scan", err)
	}
	report := &every{interval: statsEvery}
	for {
		if err := sc.Scan(); err != nil {
			logger.Info("scan: stats", "cycles", sc.Cycles(), "spun", delay.Spun())
			halt("scan", err)
		}
		if report.due(time.Now()) {
			logger.Info("scan: stats", "cycles", sc.Cycles(), "spun", delay.Spun())
		}
	}
}

// usbCore runs the transmit loop on the calling goroutine.
func usbCore(l *transmit.Loop, statsEvery time.Duration) {
	report := &every{interval: statsEvery}
	for {
		if err := l.Tick(); err != nil {
			st := l.Stats()
			logger.Info("transmit: stats", "sent", st.Sent, "failed", st.Failed)
			halt("usb", err)
		}
		if report.due(time.Now()) {
			st := l.Stats()
			logger.Info("transmit: stats", "sent", st.Sent, "failed", st.Failed)
		}
	}
}

func openTransport(cfg *config.Config) (usbmidi.Transport, error) {
	switch cfg.Transport {
	case config.TransportSerial:
		return seriallink.New(cfg.Serial.Device, cfg.Serial.Baud, seriallink.OpenPort, logger), nil
	case config.TransportRtMidi:
		w, err := rtmidi.Open(rtmidi.Options{
			Preferred:      cfg.Output.Preferred,
			Excluded:       cfg.Output.Excluded,
			RescanInterval: cfg.RescanInterval(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

func listDevices() {
	ports, err := seriallink.Ports()
	if err != nil {
		logger.Error("list serial ports failed", "err", err)
	}
	fmt.Println("serial ports:")
	for _, p := range ports {
		fmt.Println("  " + p)
	}

	outs, err := rtmidi.OutputNames()
	if err != nil {
		logger.Error("list MIDI outputs failed", "err", err)
	}
	fmt.Println("MIDI outputs:")
	for _, o := range outs {
		fmt.Println("  " + o)
	}
}

// -------------------- Main --------------------

func main() {
	defaultPath, _ := config.ConfigPath()
	cfgPath := flag.String("config", defaultPath, "config file")
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	transport := flag.String("transport", "", "where notes go: rtmidi or serial")
	serialDev := flag.String("serial", "", "serial bridge device")
	baud := flag.Int("baud", 0, "serial baud rate")
	input := flag.String("input", "", "evdev keyboard device driving the key matrix")
	sysFreq := flag.Uint("sysfreq", 0, "system clock frequency handed to the scan core, Hz")
	preferred := flag.String("prefer", "", "comma separated preferred MIDI output name patterns")
	stats := flag.Duration("stats", 0, "pipeline counter log interval (0 keeps the config value)")
	list := flag.Bool("list", false, "list serial ports and MIDI outputs, then exit")
	save := flag.Bool("save-config", false, "write the effective configuration to -config, then exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("config load failed", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}
	if *transport != "" {
		cfg.Transport = config.TransportKind(*transport)
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *input != "" {
		cfg.Input = *input
	}
	if *sysFreq != 0 {
		cfg.SysFreq = uint32(*sysFreq)
	}
	if *preferred != "" {
		cfg.Output.Preferred = strings.Split(*preferred, ",")
	}
	if *stats != 0 {
		cfg.StatsMS = int(*stats / time.Millisecond)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	initLogger(cfg.Debug)

	if *list {
		listDevices()
		return
	}
	if *save {
		if err := cfg.Save(*cfgPath); err != nil {
			logger.Error("config save failed", "path", *cfgPath, "err", err)
			os.Exit(1)
		}
		logger.Info("config saved", "path", *cfgPath)
		return
	}

	logger.Info("keymatrix starting",
		"transport", cfg.Transport,
		"input", cfg.Input,
		"sys_freq_hz", cfg.SysFreq,
		"queue_capacity", spsc.DefaultCapacity,
		"debug", cfg.Debug,
	)

	// The primary context stays on this goroutine's thread for its lifetime.
	runtime.LockOSThread()

	m := hostmatrix.New()
	prod, cons := spsc.New(spsc.DefaultCapacity)

	mb := handoff.NewMailbox()
	go scanCore(mb, m, prod, cfg.StatsInterval())
	if err := mb.Write(cfg.SysFreq); err != nil {
		halt("usb", err)
	}

	if cfg.Input != "" {
		if err := startInput(cfg.Input, m); err != nil {
			halt("input", err)
		}
	} else {
		logger.Warn("no -input device; the matrix will stay idle")
	}

	tr, err := openTransport(cfg)
	if err != nil {
		halt("usb", err)
	}

	usbCore(transmit.New(cons, tr, logger), cfg.StatsInterval())
}
