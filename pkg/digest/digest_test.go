package digest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/xgsum/pkg/xerrors"
)

func TestKnownDigests(t *testing.T) {
	testcases := []struct {
		alg   Algorithm
		input string
		want  string
	}{
		{alg: MD5, input: "", want: "d41d8cd98f00b204e9800998ecf8427e"},
		{alg: MD5, input: "abc", want: "900150983cd24fb0d6963f7d28e17f72"},
		{alg: MD5, input: "The quick brown fox jumps over the lazy dog", want: "9e107d9d372bb6826bd81d3542a419d6"},
		{alg: SHA1, input: "abc", want: "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{alg: SHA256, input: "abc", want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{alg: SHA3256, input: "abc", want: "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
		{alg: BLAKE3, input: "", want: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}
	for _, tc := range testcases {
		t.Run(string(tc.alg)+"/"+tc.input, func(t *testing.T) {
			got, err := Sum(tc.alg, []byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
			assert.Len(t, got, tc.alg.Size())
		})
	}
}

func TestNewDefaultsToMD5(t *testing.T) {
	acc := New()
	assert.Equal(t, MD5, acc.Algorithm())
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", acc.Finalize().String())
}

func TestChunkBoundariesDoNotMatter(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef-xgsum-"), 997)
	for _, name := range Algorithms() {
		alg := Algorithm(name)
		t.Run(name, func(t *testing.T) {
			whole, err := Sum(alg, payload)
			require.NoError(t, err)

			for _, size := range []int{1, 7, 64, 4096, len(payload) + 1} {
				acc, err := NewFor(alg)
				require.NoError(t, err)
				for off := 0; off < len(payload); off += size {
					end := min(off+size, len(payload))
					acc.Consume(payload[off:end])
					acc.Consume(nil)
				}
				assert.Equal(t, whole.String(), acc.Finalize().String(), "chunk size %d", size)
			}
		})
	}
}

func TestFinalizeIsSingleUse(t *testing.T) {
	acc := New()
	acc.Consume([]byte("x"))
	acc.Finalize()
	assert.Panics(t, func() { acc.Consume([]byte("y")) })
	assert.Panics(t, func() { acc.Finalize() })
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm(" SHA256 ")
	require.NoError(t, err)
	assert.Equal(t, SHA256, alg)

	alg, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, MD5, alg)

	_, err = ParseAlgorithm("crc99")
	require.Error(t, err)
	assert.Equal(t, xerrors.KindInvalid, xerrors.KindOf(err))

	_, err = NewFor("nope")
	require.Error(t, err)

	acc, err := NewFor("XXH3")
	require.NoError(t, err)
	assert.Equal(t, XXH3, acc.Algorithm())
	assert.Len(t, acc.Finalize(), 8)
}

func TestAlgorithmsSorted(t *testing.T) {
	assert.Equal(t, []string{"blake3", "md5", "sha1", "sha256", "sha3-256", "sha512", "xxh3"}, Algorithms())
}
