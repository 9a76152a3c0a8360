package protocol

// intLowHigh encodes n across b bytes, least significant byte first.
func intLowHigh(n, b int) []byte {
	out := make([]byte, b)
	for i := 0; i < b; i++ {
		out[i] = byte(n % 256)
		n /= 256
	}
	return out
}
