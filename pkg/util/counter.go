package util

import "strconv"

// maxDigits is the number of decimal digits in math.MaxUint64.
const maxDigits = 20

// Counter is a monotonically increasing nonce that keeps its decimal text in
// step with its value, so the hot loop never formats integers.
type Counter struct {
	value uint64
	buf   [maxDigits]byte
	start int
}

// NewCounter returns a counter at zero.
func NewCounter() *Counter {
	c := &Counter{}
	c.Reset()
	return c
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.value = 0
	c.start = maxDigits - 1
	c.buf[c.start] = '0'
}

// Inc adds one, carrying through the text digits.
func (c *Counter) Inc() {
	c.value++
	for i := maxDigits - 1; i >= 0; i-- {
		if i < c.start {
			c.start = i
			c.buf[i] = '1'
			return
		}
		if c.buf[i] != '9' {
			c.buf[i]++
			return
		}
		c.buf[i] = '0'
	}
	// Wrapped past MaxUint64.
	c.Reset()
}

// Value returns the numeric value.
func (c *Counter) Value() uint64 { return c.value }

// Bytes returns the decimal text. The slice aliases the counter and is only
// valid until the next Inc or Reset.
func (c *Counter) Bytes() []byte { return c.buf[c.start:] }

func (c *Counter) String() string { return string(c.Bytes()) }

// FormatNonce is the reference text form of a nonce.
func FormatNonce(n uint64) string { return strconv.FormatUint(n, 10) }
