//go:build linux

package main

import (
	"github.com/chase3718/keymatrix/internal/hostmatrix"
	"github.com/chase3718/keymatrix/internal/keyboard"
)

// startInput feeds evdev key presses into the matrix model. Losing the input
// device only stops new presses; the pipeline keeps running.
func startInput(path string, m *hostmatrix.Matrix) error {
	src, err := keyboard.Open(path, logger)
	if err != nil {
		return err
	}
	go func() {
		defer src.Close()
		if err := src.Run(m); err != nil {
			logger.Error("keyboard input stopped", "err", err)
		}
	}()
	return nil
}
