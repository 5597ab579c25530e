//go:build !linux

package main

import (
	"errors"

	"github.com/chase3718/keymatrix/internal/hostmatrix"
)

func startInput(string, *hostmatrix.Matrix) error {
	return errors.New("evdev keyboard input is only available on linux")
}
