package device

// FIFODepth is the number of sample records the FIFO holds.
const FIFODepth = 32

// SampleBytes is the size of one packed sample record: two 18-bit
// channels at 3 bytes each.
const SampleBytes = 6

// fifoSpan is the byte range both FIFO pointers wrap at.
const fifoSpan = FIFODepth * SampleBytes

// Sample is one red/infrared PPG reading. Channel values are 18-bit
// unsigned; construction clamps wider inputs.
type Sample struct {
	Red uint32
	IR  uint32
}

// NewSample builds a sample, truncating each channel to 18 bits. Values
// over range are clamped, not rejected.
func NewSample(red, ir uint32) Sample {
	return Sample{Red: red & 0x3FFFF, IR: ir & 0x3FFFF}
}

// Pack serializes the sample into its 6-byte FIFO representation: per
// channel, bits 17-16 in the first byte, then bits 15-8, then 7-0.
func (s Sample) Pack() [SampleBytes]byte {
	return [SampleBytes]byte{
		byte(s.Red>>16) & 0x03,
		byte(s.Red >> 8),
		byte(s.Red),
		byte(s.IR>>16) & 0x03,
		byte(s.IR >> 8),
		byte(s.IR),
	}
}

// UnpackSample rebuilds a sample from its 6-byte FIFO representation.
func UnpackSample(data [SampleBytes]byte) Sample {
	return Sample{
		Red: uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2]),
		IR:  uint32(data[3])<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}
}

// FIFO is the bounded sample queue of the peripheral. Records are stored
// packed; the write pointer is derived from occupancy, the read pointer
// advances byte by byte on data-register reads, and an eviction on
// overflow bumps a 5-bit wrapping counter.
type FIFO struct {
	records [][SampleBytes]byte
	readPtr int

	overflow        uint8
	almostFullLevel uint8
}

// NewFIFO creates an empty FIFO with a zero almost-full threshold.
func NewFIFO() *FIFO {
	return &FIFO{records: make([][SampleBytes]byte, 0, FIFODepth)}
}

// Len returns the number of whole records currently queued.
func (f *FIFO) Len() int {
	return len(f.records)
}

// WritePtr returns the byte-level write pointer, derived from occupancy.
func (f *FIFO) WritePtr() uint8 {
	return uint8(len(f.records) * SampleBytes % fifoSpan)
}

// ReadPtr returns the byte-level read pointer.
func (f *FIFO) ReadPtr() uint8 {
	return uint8(f.readPtr)
}

// SetReadPtr positions the read pointer, wrapped to the FIFO byte span.
func (f *FIFO) SetReadPtr(ptr uint8) {
	f.readPtr = int(ptr) % fifoSpan
}

// Overflow returns the 5-bit counter of samples lost to overflow.
func (f *FIFO) Overflow() uint8 {
	return f.overflow
}

// SetAlmostFullLevel configures the occupancy threshold for the
// almost-full interrupt flag.
func (f *FIFO) SetAlmostFullLevel(level uint8) {
	f.almostFullLevel = level
}

// AlmostFull reports whether the almost-full interrupt condition holds:
// the FIFO is non-empty and occupancy has reached the configured level.
func (f *FIFO) AlmostFull() bool {
	n := len(f.records)
	return n > 0 && n >= int(f.almostFullLevel)
}

// Push appends a sample. When the FIFO is full the oldest record is
// evicted first and the overflow counter incremented (mod 32).
func (f *FIFO) Push(s Sample) {
	if len(f.records) >= FIFODepth {
		f.overflow = (f.overflow + 1) & 0x1F
		f.records = f.records[1:]
	}
	f.records = append(f.records, s.Pack())
}

// empty reports whether the byte-level view has been fully consumed:
// read pointer caught up with write pointer and nothing was lost.
func (f *FIFO) empty() bool {
	return f.ReadPtr() == f.WritePtr() && f.overflow == 0
}

// PopByte simulates one read of the FIFO data register. It returns the
// byte under the read pointer and advances the pointer, or false once
// the queue is logically empty. The record itself stays queued until a
// whole-record pop removes it.
func (f *FIFO) PopByte() (byte, bool) {
	if len(f.records) == 0 || f.empty() {
		return 0, false
	}

	record := f.readPtr / SampleBytes % FIFODepth
	offset := f.readPtr % SampleBytes
	if record >= len(f.records) {
		return 0, false
	}

	value := f.records[record][offset]
	f.readPtr = (f.readPtr + 1) % fifoSpan
	return value, true
}

// PopBytes pops up to count bytes through PopByte, stopping early when
// the queue runs out.
func (f *FIFO) PopBytes(count int) []byte {
	data := make([]byte, 0, count)
	for range count {
		b, ok := f.PopByte()
		if !ok {
			break
		}
		data = append(data, b)
	}
	return data
}

// PopRecords removes and unpacks up to count whole records, oldest
// first. The byte-level read pointer is left alone; only a device reset
// rewinds it.
func (f *FIFO) PopRecords(count int) []Sample {
	if count > len(f.records) {
		count = len(f.records)
	}
	samples := make([]Sample, 0, count)
	for _, record := range f.records[:count] {
		samples = append(samples, UnpackSample(record))
	}
	f.records = f.records[count:]
	return samples
}

// Clear empties the queue and zeroes both pointers and the overflow
// counter.
func (f *FIFO) Clear() {
	f.records = f.records[:0]
	f.readPtr = 0
	f.overflow = 0
}
