package address

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/blake2b-simd"
)

// F4Jumble (ZIP 316): an unkeyed 4-round Feistel construction over
// BLAKE2b that ties every byte of a unified address to every other, so
// truncated or spliced addresses fail to decode. Only the inverse is
// needed here; encoding applies the forward direction.

const (
	f4MinLen = 48
	f4MaxLen = 4194368
)

func f4LeftLen(total int) int {
	half := total / 2
	if half > 64 {
		return 64
	}
	return half
}

// f4H computes the H round function: BLAKE2b with output length lL and
// personalization "UA_F4Jumble_H" || i || 0 || 0.
func f4H(i byte, u []byte, lL int) ([]byte, error) {
	person := make([]byte, 16)
	copy(person, "UA_F4Jumble_H")
	person[13] = i
	h, err := blake2b.New(&blake2b.Config{Size: uint8(lL), Person: person})
	if err != nil {
		return nil, err
	}
	h.Write(u)
	return h.Sum(nil), nil
}

// f4G computes the G round function: successive 64-byte BLAKE2b blocks
// personalized "UA_F4Jumble_G" || i || LE16(j), truncated to lR.
func f4G(i byte, u []byte, lR int) ([]byte, error) {
	out := make([]byte, 0, lR)
	for j := uint16(0); len(out) < lR; j++ {
		person := make([]byte, 16)
		copy(person, "UA_F4Jumble_G")
		person[13] = i
		binary.LittleEndian.PutUint16(person[14:16], j)
		h, err := blake2b.New(&blake2b.Config{Size: 64, Person: person})
		if err != nil {
			return nil, err
		}
		h.Write(u)
		out = append(out, h.Sum(nil)...)
	}
	return out[:lR], nil
}

func xorInto(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

// f4Jumble applies the forward transform.
func f4Jumble(m []byte) ([]byte, error) {
	if len(m) < f4MinLen || len(m) > f4MaxLen {
		return nil, fmt.Errorf("f4jumble: message length %d out of range", len(m))
	}
	lL := f4LeftLen(len(m))
	lR := len(m) - lL
	a, b := m[:lL], m[lL:]

	g0, err := f4G(0, a, lR)
	if err != nil {
		return nil, err
	}
	x := make([]byte, lR)
	xorInto(x, b, g0)

	h0, err := f4H(0, x, lL)
	if err != nil {
		return nil, err
	}
	y := make([]byte, lL)
	xorInto(y, a, h0)

	g1, err := f4G(1, y, lR)
	if err != nil {
		return nil, err
	}
	d := make([]byte, lR)
	xorInto(d, x, g1)

	h1, err := f4H(1, d, lL)
	if err != nil {
		return nil, err
	}
	c := make([]byte, lL)
	xorInto(c, y, h1)

	return append(c, d...), nil
}

// f4JumbleInv inverts the transform.
func f4JumbleInv(m []byte) ([]byte, error) {
	if len(m) < f4MinLen || len(m) > f4MaxLen {
		return nil, fmt.Errorf("f4jumble: message length %d out of range", len(m))
	}
	lL := f4LeftLen(len(m))
	lR := len(m) - lL
	c, d := m[:lL], m[lL:]

	h1, err := f4H(1, d, lL)
	if err != nil {
		return nil, err
	}
	y := make([]byte, lL)
	xorInto(y, c, h1)

	g1, err := f4G(1, y, lR)
	if err != nil {
		return nil, err
	}
	x := make([]byte, lR)
	xorInto(x, d, g1)

	h0, err := f4H(0, x, lL)
	if err != nil {
		return nil, err
	}
	a := make([]byte, lL)
	xorInto(a, y, h0)

	g0, err := f4G(0, a, lR)
	if err != nil {
		return nil, err
	}
	b := make([]byte, lR)
	xorInto(b, x, g0)

	return append(a, b...), nil
}
