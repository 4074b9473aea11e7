// Package addr defines the MAX30102 register address space and the bit
// field tables used to decode its configuration registers.
package addr

// interrupt and FIFO registers
const (
	// Interrupt Status 1 register. Bit 4 is the FIFO almost-full flag.
	IntrStatus1 uint8 = 0x00
	// Interrupt Status 2 register.
	IntrStatus2 uint8 = 0x01
	// Interrupt Enable 1 register.
	IntrEnable1 uint8 = 0x02
	// Interrupt Enable 2 register.
	IntrEnable2 uint8 = 0x03
	// FIFO Write Pointer register.
	FIFOWritePtr uint8 = 0x04
	// FIFO Overflow Counter register (5-bit, wraps).
	OverflowCounter uint8 = 0x05
	// FIFO Read Pointer register.
	FIFOReadPtr uint8 = 0x06
	// FIFO Data register. Reads cycle through the packed sample bytes.
	FIFOData uint8 = 0x07
	// FIFO Configuration register.
	FIFOConfig uint8 = 0x08
)

// configuration registers
const (
	// Mode Configuration register. Bit 6 = reset, bit 7 = shutdown.
	ModeConfig uint8 = 0x09
	// SpO2 Configuration register (ADC range, sample rate, pulse width).
	SpO2Config uint8 = 0x0A
	// LED1 (red) pulse amplitude register.
	LED1PulseAmp uint8 = 0x0C
	// LED2 (infrared) pulse amplitude register.
	LED2PulseAmp uint8 = 0x0D
	// Proximity mode LED pulse amplitude register.
	PilotPulseAmp uint8 = 0x10
	// Multi-LED mode control registers.
	MultiLEDCtrl1 uint8 = 0x11
	MultiLEDCtrl2 uint8 = 0x12
)

// die temperature registers
const (
	// Integer part of the die temperature, two's complement.
	TempInteger uint8 = 0x1F
	// Fractional part of the die temperature, 0.0625 degree steps.
	TempFraction uint8 = 0x20
	// Temperature conversion trigger register.
	TempConfig uint8 = 0x21
)

// part identification registers
const (
	RevisionID uint8 = 0xFE
	PartID     uint8 = 0xFF
)

// ModeConfig field values and flags.
const (
	// ModeHeartRate enables red LED only.
	ModeHeartRate uint8 = 0x02
	// ModeSpO2 enables red and infrared LEDs.
	ModeSpO2 uint8 = 0x03
	// ModeMultiLED enables software-controlled LED slots.
	ModeMultiLED uint8 = 0x07

	// ModeResetBit triggers a full device reset when written.
	ModeResetBit uint8 = 0x40
	// ModeShutdownBit puts the device into power-save mode.
	ModeShutdownBit uint8 = 0x80
	// ModeMask clears the reserved ModeConfig bits on write.
	ModeMask uint8 = 0x8F
)

// FIFOConfig fields.
const (
	// FIFORolloverBit enables overwrite of old samples when the FIFO is full.
	FIFORolloverBit uint8 = 0x10
	// FIFOAlmostFullMask selects the almost-full threshold (low 4 bits).
	FIFOAlmostFullMask uint8 = 0x0F
)

// IntrStatus1 flags.
const (
	// IntrFIFOAlmostFull is raised when FIFO occupancy reaches the
	// configured threshold.
	IntrFIFOAlmostFull uint8 = 0x10
)

// SpO2Config reserved-bit mask.
const SpO2Mask uint8 = 0xFC

// SampleRate decodes the SpO2Config sample-rate bits (bits 4:2) into a
// rate in Hz. Unrecognized patterns decode to 100 Hz.
func SampleRate(spo2Config uint8) int {
	switch (spo2Config >> 2) & 0x07 {
	case 0:
		return 50
	case 1:
		return 100
	case 2:
		return 200
	case 3:
		return 400
	case 4:
		return 800
	case 5:
		return 1000
	case 6:
		return 1600
	case 7:
		return 3200
	}
	return 100
}

// SampleAveraging decodes the FIFOConfig averaging bits (bits 7:5) into
// the number of samples averaged per FIFO entry. Unrecognized patterns
// decode to 1.
func SampleAveraging(fifoConfig uint8) int {
	switch (fifoConfig >> 5) & 0x07 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	case 3:
		return 8
	case 4:
		return 16
	case 5:
		return 32
	}
	return 1
}

// Defaults returns the power-on register table. The device boots in SpO2
// mode at 100 Hz, everything else cleared.
func Defaults() map[uint8]uint8 {
	return map[uint8]uint8{
		IntrStatus1:     0x00,
		IntrStatus2:     0x00,
		IntrEnable1:     0x00,
		IntrEnable2:     0x00,
		FIFOWritePtr:    0x00,
		OverflowCounter: 0x00,
		FIFOReadPtr:     0x00,
		FIFOData:        0x00,
		FIFOConfig:      0x00,
		ModeConfig:      ModeSpO2,
		SpO2Config:      0x27,
		LED1PulseAmp:    0x00,
		LED2PulseAmp:    0x00,
		PilotPulseAmp:   0x00,
		MultiLEDCtrl1:   0x00,
		MultiLEDCtrl2:   0x00,
		TempInteger:     0x25, // 37 degrees C
		TempFraction:    0x00,
		TempConfig:      0x00,
		RevisionID:      0x03,
		PartID:          0x15,
	}
}
