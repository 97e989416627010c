package address

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(fill byte) [20]byte {
	var h [20]byte
	for i := range h {
		h[i] = fill
	}
	return h
}

func testReceiver(fill byte) [43]byte {
	var r [43]byte
	for i := range r {
		r[i] = fill
	}
	return r
}

// encodeUnifiedBody runs an arbitrary receiver list through the unified
// address pipeline, for fixtures EncodeUnified cannot produce.
func encodeUnifiedBody(t *testing.T, body []byte, mainnet bool) string {
	t.Helper()
	hrp := "utest"
	if mainnet {
		hrp = "u"
	}
	padding := make([]byte, 16)
	copy(padding, hrp)
	jumbled, err := f4Jumble(append(append([]byte{}, body...), padding...))
	require.NoError(t, err)
	data, err := convertBits(jumbled, 8, 5, true)
	require.NoError(t, err)
	return bech32mEncode(hrp, data)
}

func TestTransparentRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		p2sh    bool
		mainnet bool
		prefix  string
	}{
		{"mainnet p2pkh", false, true, "t1"},
		{"mainnet p2sh", true, true, "t3"},
		{"testnet p2pkh", false, false, "tm"},
		{"testnet p2sh", true, false, "t2"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			hash := testHash(0x42)
			addr := EncodeTransparent(hash, tc.p2sh, tc.mainnet)
			assert.True(t, strings.HasPrefix(addr, tc.prefix), "got %s", addr)

			c := Classify(addr, tc.mainnet)
			require.Equal(t, KindTransparent, c.Kind)
			if tc.p2sh {
				assert.Equal(t, P2SHScript(hash), c.Script)
			} else {
				assert.Equal(t, P2PKHScript(hash), c.Script)
			}
		})
	}
}

func TestTransparentWrongNetwork(t *testing.T) {
	mainAddr := EncodeTransparent(testHash(1), false, true)
	assert.Equal(t, KindInvalid, Classify(mainAddr, false).Kind)

	testAddr := EncodeTransparent(testHash(1), false, false)
	assert.Equal(t, KindInvalid, Classify(testAddr, true).Kind)
}

func TestTransparentBadChecksum(t *testing.T) {
	addr := EncodeTransparent(testHash(2), false, true)
	b := []byte(addr)
	last := len(b) - 1
	if b[last] == '2' {
		b[last] = '3'
	} else {
		b[last] = '2'
	}
	assert.Equal(t, KindInvalid, Classify(string(b), true).Kind)
}

func TestClassifyGarbage(t *testing.T) {
	for _, addr := range []string{"", "t1", "hello world", "u1", "t1zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.Equal(t, KindInvalid, Classify(addr, true).Kind, "addr=%q", addr)
	}
}

func TestUnifiedRoundTrip(t *testing.T) {
	receiver := testReceiver(0x07)
	for _, mainnet := range []bool{true, false} {
		addr, err := EncodeUnified(receiver, mainnet)
		require.NoError(t, err)
		wantPrefix := "utest1"
		if mainnet {
			wantPrefix = "u1"
		}
		assert.True(t, strings.HasPrefix(addr, wantPrefix), "got %s", addr)

		c := Classify(addr, mainnet)
		require.Equal(t, KindShieldedCapable, c.Kind)
		require.NotNil(t, c.Orchard)
		assert.Equal(t, receiver, *c.Orchard)
	}
}

func TestUnifiedWrongNetwork(t *testing.T) {
	addr, err := EncodeUnified(testReceiver(3), true)
	require.NoError(t, err)
	assert.Equal(t, KindInvalid, Classify(addr, false).Kind)
}

func TestUnifiedCorruptedRejected(t *testing.T) {
	addr, err := EncodeUnified(testReceiver(4), true)
	require.NoError(t, err)

	// Any single-character change breaks the bech32m checksum.
	b := []byte(addr)
	i := len(b) - 5
	if b[i] == 'q' {
		b[i] = 'p'
	} else {
		b[i] = 'q'
	}
	assert.Equal(t, KindInvalid, Classify(string(b), true).Kind)
}

func TestUnifiedWithTransparentFallback(t *testing.T) {
	receiver := testReceiver(9)
	hash := testHash(0x11)

	body := []byte{uaTypeP2PKH, 20}
	body = append(body, hash[:]...)
	body = append(body, uaTypeOrchard, 43)
	body = append(body, receiver[:]...)

	addr := encodeUnifiedBody(t, body, true)
	c := Classify(addr, true)
	require.Equal(t, KindShieldedCapable, c.Kind)
	require.NotNil(t, c.Orchard)
	assert.Equal(t, receiver, *c.Orchard)
	assert.Equal(t, P2PKHScript(hash), c.Script)
}

func TestUnifiedSaplingOnlyRejected(t *testing.T) {
	sapling := testReceiver(5)
	body := []byte{uaTypeSapling, 43}
	body = append(body, sapling[:]...)

	addr := encodeUnifiedBody(t, body, true)
	assert.Equal(t, KindInvalid, Classify(addr, true).Kind)
}

func TestUnifiedUnknownTypecodeTolerated(t *testing.T) {
	receiver := testReceiver(6)
	body := []byte{0x7f, 3, 0xAA, 0xBB, 0xCC}
	body = append(body, uaTypeOrchard, 43)
	body = append(body, receiver[:]...)

	addr := encodeUnifiedBody(t, body, true)
	c := Classify(addr, true)
	require.Equal(t, KindShieldedCapable, c.Kind)
	assert.Equal(t, receiver, *c.Orchard)
}

func TestF4JumbleInverse(t *testing.T) {
	for _, size := range []int{48, 61, 100, 255} {
		msg := make([]byte, size)
		for i := range msg {
			msg[i] = byte(i * 7)
		}
		jumbled, err := f4Jumble(msg)
		require.NoError(t, err)
		assert.NotEqual(t, msg, jumbled)
		assert.Len(t, jumbled, size)

		back, err := f4JumbleInv(jumbled)
		require.NoError(t, err)
		assert.Equal(t, msg, back)
	}
}

func TestScriptShapes(t *testing.T) {
	hash := testHash(0xAB)

	p2pkh := P2PKHScript(hash)
	require.Len(t, p2pkh, 25)
	assert.Equal(t, []byte{0x76, 0xa9, 0x14}, p2pkh[:3])
	assert.True(t, bytes.Equal(hash[:], p2pkh[3:23]))
	assert.Equal(t, []byte{0x88, 0xac}, p2pkh[23:])

	p2sh := P2SHScript(hash)
	require.Len(t, p2sh, 23)
	assert.Equal(t, []byte{0xa9, 0x14}, p2sh[:2])
	assert.True(t, bytes.Equal(hash[:], p2sh[2:22]))
	assert.Equal(t, byte(0x87), p2sh[22])
}
