package util

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWallet(t *testing.T) {
	w, err := NormalizeWallet("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	require.NoError(t, err)
	require.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", w)

	for _, bad := range []string{"", "0x123", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "0xzzaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"} {
		_, err = NormalizeWallet(bad)
		require.ErrorIs(t, err, ErrInvalidWallet, bad)
	}
}

func TestNormalizeSha256(t *testing.T) {
	digest := GenerateChecksum([]byte("hello"))
	got, ok := NormalizeSha256("0x" + string(bytes.ToUpper([]byte(digest))))
	require.True(t, ok)
	require.Equal(t, digest, got)

	_, ok = NormalizeSha256("abc")
	require.False(t, ok)
}

func TestProofHashIsKeccakOfHexString(t *testing.T) {
	digest := GenerateChecksum([]byte("video bytes"))
	require.Equal(t, crypto.Keccak256Hash([]byte(digest)), ProofHash(digest))
	// upper-case input yields the same canonical proof hash
	require.Equal(t, ProofHash(digest), ProofHash(string(bytes.ToUpper([]byte(digest)))))
}

func TestHashReader(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 1<<20)
	digest, n, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, GenerateChecksum(data), digest)
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	require.NoError(t, err)
	b, err := RandomHex(32)
	require.NoError(t, err)
	require.Len(t, a, 64)
	require.NotEqual(t, a, b)
}
