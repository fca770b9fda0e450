package audio

import "encoding/binary"

// EncodePCM16 converts a normalized float32 frame to little-endian
// 16-bit PCM, the wire format streaming recognizers expect.
func EncodePCM16(frame Frame) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
