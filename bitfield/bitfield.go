// Package bitfield holds the flag and field helpers register mapped drivers use
// to compose register values.
//
// Bits are numbered from 0 (least significant). Masks describe a contiguous
// field, e.g. 0b00111000 for a 3-bit field starting at bit 3.
package bitfield

// IsSet reports whether bit is set in v.
func IsSet(v byte, bit uint) bool {
	return v&(1<<bit) != 0
}

// IsClear reports whether bit is clear in v.
func IsClear(v byte, bit uint) bool {
	return !IsSet(v, bit)
}

// Set returns v with bit set. Other bits are left untouched.
func Set(v byte, bit uint) byte {
	return v | 1<<bit
}

// Clear returns v with bit cleared.
func Clear(v byte, bit uint) byte {
	return v &^ (1 << bit)
}

// Field extracts the bits selected by mask and shifts them down to bit 0.
// A zero mask yields 0.
func Field(v, mask byte) byte {
	if mask == 0 {
		return 0
	}
	return (v & mask) >> shift(mask)
}

// WithField returns v with the bits selected by mask replaced by x shifted into
// the mask position. Bits of x that do not fit the field are discarded.
// A zero mask returns v unchanged.
func WithField(v, mask, x byte) byte {
	if mask == 0 {
		return v
	}
	return v&^mask | (x<<shift(mask))&mask
}

// shift returns the position of the lowest set bit of a non zero mask.
func shift(mask byte) uint {
	var n uint
	for mask&0x01 == 0 {
		mask >>= 1
		n++
	}
	return n
}
