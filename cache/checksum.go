package cache

// GuardValue is written to the guard of a line after every write to the line.
const GuardValue byte = 0xaa

// Checksum returns the djb2 hash of data.
func Checksum(data []byte) uint32 {
	h := uint32(5381)
	for _, b := range data {
		h = h<<5 + h + uint32(b)
	}

	return h
}
