package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alinrajpoot/max30102-simulator/max30102/addr"
)

// ErrBusUnavailable is returned when the simulated bus fault is active.
// The operation performs no state change beyond the error counter.
var ErrBusUnavailable = errors.New("bus unavailable")

// DefaultBusAddress is the MAX30102 I2C slave address.
const DefaultBusAddress = 0x57

// Device emulates the MAX30102 at the bus transaction level: a register
// file with write side effects, the sample FIFO, simulated transfer
// latency and a bus fault injector. It is not safe for concurrent use;
// the owner serializes access.
type Device struct {
	busAddress uint8
	registers  *RegisterFile
	fifo       *FIFO

	busAvailable bool
	latency      time.Duration // per byte transferred

	sampleRate   int
	averaging    int
	fifoRollover bool
	powerOn      bool
	sampleCount  uint64

	readOps  uint64
	writeOps uint64
	errors   uint64

	logger *slog.Logger
}

// Option configures a Device at construction.
type Option func(*Device)

// WithLogger sets the logger used for bus traffic and fault reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) { d.logger = logger }
}

// WithBusAddress overrides the default I2C slave address.
func WithBusAddress(address uint8) Option {
	return func(d *Device) { d.busAddress = address }
}

// WithLatency sets the simulated per-byte transfer delay.
func WithLatency(latency time.Duration) Option {
	return func(d *Device) { d.latency = latency }
}

// New creates a device in its power-on state.
func New(opts ...Option) *Device {
	d := &Device{
		busAddress:   DefaultBusAddress,
		registers:    NewRegisterFile(),
		fifo:         NewFIFO(),
		busAvailable: true,
		sampleRate:   100,
		averaging:    1,
		powerOn:      true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger.Info("device initialized", "bus_address", fmt.Sprintf("0x%02X", d.busAddress))
	return d
}

// WriteRegister performs a single-register bus write, firing any side
// effect hook the address carries.
func (d *Device) WriteRegister(address, value uint8) error {
	if err := d.checkBus(); err != nil {
		return err
	}
	if !d.registers.Contains(address) {
		d.errors++
		d.logger.Warn("write to invalid register", "address", fmt.Sprintf("0x%02X", address))
		return fmt.Errorf("write 0x%02X: %w", address, ErrInvalidAddress)
	}

	d.wait(1)
	if reset := d.applyWrite(address, value); reset {
		return nil
	}
	d.writeOps++
	d.logger.Debug("bus write", "address", fmt.Sprintf("0x%02X", address), "value", fmt.Sprintf("0x%02X", value))
	return nil
}

// ReadRegister performs a single-register bus read. Reads of the FIFO
// data register consume one queued byte; reads of the interrupt status
// register clear it.
func (d *Device) ReadRegister(address uint8) (uint8, error) {
	if err := d.checkBus(); err != nil {
		return 0, err
	}
	if !d.registers.Contains(address) {
		d.errors++
		d.logger.Warn("read from invalid register", "address", fmt.Sprintf("0x%02X", address))
		return 0, fmt.Errorf("read 0x%02X: %w", address, ErrInvalidAddress)
	}

	d.wait(1)
	value := d.applyRead(address)
	d.readOps++
	d.logger.Debug("bus read", "address", fmt.Sprintf("0x%02X", address), "value", fmt.Sprintf("0x%02X", value))
	return value, nil
}

// BurstRead reads count consecutive registers in one bus transaction.
// Addresses outside the register map yield 0x00 placeholders rather than
// failing the whole burst. Counts as a single read operation.
func (d *Device) BurstRead(start uint8, count int) ([]uint8, error) {
	if err := d.checkBus(); err != nil {
		return nil, err
	}

	d.wait(count)
	values := make([]uint8, 0, count)
	for i := 0; i < count; i++ {
		address := start + uint8(i)
		if !d.registers.Contains(address) {
			d.logger.Warn("invalid register in burst read", "address", fmt.Sprintf("0x%02X", address))
			values = append(values, 0x00)
			continue
		}
		values = append(values, d.applyRead(address))
	}
	d.readOps++
	d.logger.Debug("bus burst read", "start", fmt.Sprintf("0x%02X", start), "count", count)
	return values, nil
}

// BurstWrite writes consecutive registers in one bus transaction,
// skipping addresses outside the register map. Counts as a single write
// operation.
func (d *Device) BurstWrite(start uint8, values []uint8) error {
	if err := d.checkBus(); err != nil {
		return err
	}

	d.wait(len(values))
	resetFired := false
	for i, value := range values {
		address := start + uint8(i)
		if !d.registers.Contains(address) {
			d.logger.Warn("invalid register in burst write", "address", fmt.Sprintf("0x%02X", address))
			continue
		}
		resetFired = d.applyWrite(address, value) || resetFired
	}
	if resetFired {
		return nil
	}
	d.writeOps++
	d.logger.Debug("bus burst write", "start", fmt.Sprintf("0x%02X", start), "count", len(values))
	return nil
}

// PushSample queues one red/infrared reading into the FIFO, updating the
// pointer registers and the almost-full interrupt flag.
func (d *Device) PushSample(red, ir uint32) {
	d.fifo.Push(NewSample(red, ir))
	d.sampleCount++
	d.syncFIFORegisters()
}

// ReadFIFOSamples removes up to count whole records from the FIFO and
// returns them unpacked, oldest first.
func (d *Device) ReadFIFOSamples(count int) []Sample {
	samples := d.fifo.PopRecords(count)
	d.syncFIFORegisters()
	return samples
}

// FIFOLen returns the number of samples currently queued.
func (d *Device) FIFOLen() int {
	return d.fifo.Len()
}

// SampleRate returns the rate decoded from the SpO2 configuration.
func (d *Device) SampleRate() int {
	return d.sampleRate
}

// SetBusAvailability toggles the simulated bus fault. While unavailable
// every transaction fails with ErrBusUnavailable.
func (d *Device) SetBusAvailability(available bool) {
	d.busAvailable = available
	d.logger.Debug("bus availability changed", "available", available)
}

// SetLatency adjusts the simulated per-byte transfer delay.
func (d *Device) SetLatency(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	d.latency = latency
}

// Status describes the externally observable device state.
type Status struct {
	BusAddress      string `json:"device_address"`
	FIFOSamples     int    `json:"fifo_samples"`
	SampleRate      int    `json:"sample_rate"`
	Averaging       int    `json:"averaging_samples"`
	FIFORollover    bool   `json:"fifo_rollover"`
	SampleCount     uint64 `json:"sample_count"`
	ReadOperations  uint64 `json:"read_operations"`
	WriteOperations uint64 `json:"write_operations"`
	ErrorCount      uint64 `json:"error_count"`
	OperatingMode   uint8  `json:"operating_mode"`
	PowerState      string `json:"power_state"`
}

// Status returns a snapshot of device state and transaction counters.
func (d *Device) Status() Status {
	mode, _ := d.registers.Read(addr.ModeConfig)
	power := "active"
	if !d.powerOn {
		power = "shutdown"
	}
	return Status{
		BusAddress:      fmt.Sprintf("0x%02X", d.busAddress),
		FIFOSamples:     d.fifo.Len(),
		SampleRate:      d.sampleRate,
		Averaging:       d.averaging,
		FIFORollover:    d.fifoRollover,
		SampleCount:     d.sampleCount,
		ReadOperations:  d.readOps,
		WriteOperations: d.writeOps,
		ErrorCount:      d.errors,
		OperatingMode:   mode & 0x07,
		PowerState:      power,
	}
}

// Reset restores the power-on state: default register table, empty FIFO,
// zeroed pointers, counters and statistics. One atomic step from the bus
// master's point of view.
func (d *Device) Reset() {
	d.registers.Reset()
	d.fifo.Clear()
	d.fifo.SetAlmostFullLevel(0)
	d.sampleRate = 100
	d.averaging = 1
	d.fifoRollover = false
	d.powerOn = true
	d.sampleCount = 0
	d.readOps = 0
	d.writeOps = 0
	d.errors = 0
	d.logger.Info("device reset")
}

func (d *Device) checkBus() error {
	if d.busAvailable {
		return nil
	}
	d.errors++
	d.logger.Error("bus not available")
	return ErrBusUnavailable
}

// wait simulates the transfer time of n bytes on the bus.
func (d *Device) wait(n int) {
	if d.latency > 0 && n > 0 {
		time.Sleep(d.latency * time.Duration(n))
	}
}

// applyWrite stores a value and fires the side effect hook for addresses
// that control device behavior. The address must already be validated.
// Returns true if the write triggered a full device reset, in which case
// the operation counters were just zeroed and the write is not counted.
func (d *Device) applyWrite(address, value uint8) bool {
	switch address {
	case addr.ModeConfig:
		if value&addr.ModeResetBit != 0 {
			d.Reset()
			return true
		}
		d.registers.Write(address, value&addr.ModeMask)
		d.powerOn = value&addr.ModeShutdownBit == 0
		if d.powerOn {
			d.logger.Info("device exiting shutdown mode")
		} else {
			d.logger.Info("device entering shutdown mode")
		}
	case addr.FIFOConfig:
		d.registers.Write(address, value)
		d.averaging = addr.SampleAveraging(value)
		d.fifoRollover = value&addr.FIFORolloverBit != 0
		d.fifo.SetAlmostFullLevel(value & addr.FIFOAlmostFullMask)
		d.syncFIFORegisters()
	case addr.SpO2Config:
		d.registers.Write(address, value&addr.SpO2Mask)
		d.sampleRate = addr.SampleRate(value)
	case addr.FIFOWritePtr:
		d.registers.Write(address, value%fifoSpan)
	case addr.FIFOReadPtr:
		d.fifo.SetReadPtr(value)
		d.registers.Write(address, d.fifo.ReadPtr())
	default:
		d.registers.Write(address, value)
	}
	return false
}

// applyRead fetches a value, handling the registers with read side
// effects. The address must already be validated.
func (d *Device) applyRead(address uint8) uint8 {
	switch address {
	case addr.FIFOData:
		value, _ := d.fifo.PopByte()
		d.registers.Write(addr.FIFOReadPtr, d.fifo.ReadPtr())
		return value
	case addr.IntrStatus1:
		// Cleared on read. The real part clears per bit source; this is
		// a documented simplification.
		value, _ := d.registers.Read(address)
		d.registers.Write(address, 0x00)
		return value
	default:
		value, _ := d.registers.Read(address)
		return value
	}
}

// syncFIFORegisters mirrors derived FIFO state into the pointer and
// status registers.
func (d *Device) syncFIFORegisters() {
	d.registers.Write(addr.FIFOWritePtr, d.fifo.WritePtr())
	d.registers.Write(addr.FIFOReadPtr, d.fifo.ReadPtr())
	d.registers.Write(addr.OverflowCounter, d.fifo.Overflow())

	status, _ := d.registers.Read(addr.IntrStatus1)
	if d.fifo.AlmostFull() {
		status |= addr.IntrFIFOAlmostFull
	} else {
		status &^= addr.IntrFIFOAlmostFull
	}
	d.registers.Write(addr.IntrStatus1, status)
}
