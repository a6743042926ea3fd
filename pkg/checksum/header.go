package checksum

// HeaderPolynomial is the feedback term of the header checksum.
const HeaderPolynomial = 0x8C

// Header computes the 8-bit header checksum of a version-2 block header.
//
// data must be the header bytes that follow the checksum byte. Each byte is
// shifted in LSB first; whenever the low bit of result XOR data is set the
// shifted result is XORed with HeaderPolynomial.
func Header(data []byte) uint8 {
	var result uint8
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bit0 := (result ^ b) & 1
			result >>= 1
			if bit0 != 0 {
				result ^= HeaderPolynomial
			}
			b >>= 1
		}
	}
	return result
}
