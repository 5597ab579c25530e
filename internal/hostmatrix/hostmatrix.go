// Package hostmatrix models the electrical behaviour of the diode key matrix
// so the scanner can run on a host. Rows are push-pull outputs idling high,
// columns are pulled-up inputs, and a held key pulls its column low while its
// row is strobed low.
package hostmatrix

import (
	"sync/atomic"

	"github.com/chase3718/keymatrix/internal/keymap"
	"github.com/chase3718/keymatrix/internal/matrix"
)

// Matrix is safe for one scanning goroutine plus any number of goroutines
// pressing and releasing keys.
type Matrix struct {
	// strobed has bit r set while row r is driven low.
	strobed atomic.Uint64
	// closed has bit row*Cols+col set while that switch is closed.
	closed atomic.Uint64

	rows [keymap.Rows]rowPin
	cols [keymap.Cols]colPin
}

// New returns a matrix with every row idle and every switch open.
func New() *Matrix {
	m := &Matrix{}
	for i := range m.rows {
		m.rows[i] = rowPin{m: m, row: i}
	}
	for i := range m.cols {
		m.cols[i] = colPin{m: m, col: i}
	}
	return m
}

// Rows returns the row strobe pins in index order.
func (m *Matrix) Rows() []matrix.OutputPin {
	out := make([]matrix.OutputPin, len(m.rows))
	for i := range m.rows {
		out[i] = &m.rows[i]
	}
	return out
}

// Cols returns the column input pins in index order.
func (m *Matrix) Cols() []matrix.InputPin {
	out := make([]matrix.InputPin, len(m.cols))
	for i := range m.cols {
		out[i] = &m.cols[i]
	}
	return out
}

// SetSwitch closes or opens the switch at (row, col). Positions with no key
// wired can still be closed; the scanner must ignore them. Positions outside
// the matrix are ignored.
func (m *Matrix) SetSwitch(row, col int, closed bool) {
	if row < 0 || row >= keymap.Rows || col < 0 || col >= keymap.Cols {
		return
	}
	bit := uint64(1) << (row*keymap.Cols + col)
	for {
		old := m.closed.Load()
		next := old &^ bit
		if closed {
			next = old | bit
		}
		if m.closed.CompareAndSwap(old, next) {
			return
		}
	}
}

// Press closes the switch for key k.
func (m *Matrix) Press(k keymap.KeyIndex) {
	row, col := keymap.Position(k)
	m.SetSwitch(row, col, true)
}

// Release opens the switch for key k.
func (m *Matrix) Release(k keymap.KeyIndex) {
	row, col := keymap.Position(k)
	m.SetSwitch(row, col, false)
}

// Strobed reports whether row is currently driven low. It is false for rows
// outside the matrix.
func (m *Matrix) Strobed(row int) bool {
	if row < 0 || row >= keymap.Rows {
		return false
	}
	return m.strobed.Load()&(1<<row) != 0
}

func (m *Matrix) setRow(row int, low bool) {
	bit := uint64(1) << row
	for {
		old := m.strobed.Load()
		next := old &^ bit
		if low {
			next = old | bit
		}
		if m.strobed.CompareAndSwap(old, next) {
			return
		}
	}
}

// level returns the column's electrical level: false (low) when any closed
// switch on that column connects it to a strobed row.
func (m *Matrix) level(col int) bool {
	strobed := m.strobed.Load()
	closed := m.closed.Load()
	for row := 0; row < keymap.Rows; row++ {
		if strobed&(1<<row) == 0 {
			continue
		}
		if closed&(1<<(row*keymap.Cols+col)) != 0 {
			return false
		}
	}
	return true
}

type rowPin struct {
	m   *Matrix
	row int
}

func (p *rowPin) High() { p.m.setRow(p.row, false) }
func (p *rowPin) Low()  { p.m.setRow(p.row, true) }

type colPin struct {
	m   *Matrix
	col int
}

func (p *colPin) Get() bool { return p.m.level(p.col) }
