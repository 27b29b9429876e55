package analysis

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. The subtraction keeps
// exact powers of two unchanged: for 8, bits.Len(7) is 3 and 1<<3 is 8.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of two have a single bit
// set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
