package ql

// packBits compresses one raster row with TIFF PackBits, the scheme the
// compression mode command enables. Worst case output is one control
// byte per 128 literals, so a 90-byte row stays well under 256 bytes.
func packBits(src []byte) []byte {
	var dst []byte
	for i := 0; i < len(src); {
		// Find the run length of the current byte.
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run > 1 {
			dst = append(dst, byte(257-run), src[i])
			i += run
			continue
		}

		// Collect literals until the next run of at least three.
		j := i + 1
		for j < len(src) && j-i < 128 {
			if j+2 < len(src) && src[j] == src[j+1] && src[j] == src[j+2] {
				break
			}
			j++
		}
		dst = append(dst, byte(j-i-1))
		dst = append(dst, src[i:j]...)
		i = j
	}
	return dst
}
