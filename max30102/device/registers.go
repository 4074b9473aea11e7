package device

import (
	"errors"
	"fmt"

	"github.com/alinrajpoot/max30102-simulator/max30102/addr"
)

// ErrInvalidAddress is returned for reads or writes outside the known
// register address set. The register file never grows a new cell.
var ErrInvalidAddress = errors.New("invalid register address")

// RegisterFile is the addressable 8-bit control/status space of the
// peripheral. Only addresses present in the default table exist; access
// to anything else is rejected.
type RegisterFile struct {
	cells map[uint8]uint8
}

// NewRegisterFile creates a register file initialized to the power-on
// defaults.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{cells: addr.Defaults()}
}

// Read returns the value of the register at the given address.
func (r *RegisterFile) Read(address uint8) (uint8, error) {
	value, ok := r.cells[address]
	if !ok {
		return 0, fmt.Errorf("read 0x%02X: %w", address, ErrInvalidAddress)
	}
	return value, nil
}

// Write stores a value at the given address.
func (r *RegisterFile) Write(address uint8, value uint8) error {
	if _, ok := r.cells[address]; !ok {
		return fmt.Errorf("write 0x%02X: %w", address, ErrInvalidAddress)
	}
	r.cells[address] = value
	return nil
}

// Contains reports whether the address is part of the register map.
func (r *RegisterFile) Contains(address uint8) bool {
	_, ok := r.cells[address]
	return ok
}

// Reset restores every register to its power-on default.
func (r *RegisterFile) Reset() {
	r.cells = addr.Defaults()
}
