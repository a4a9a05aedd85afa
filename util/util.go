package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidWallet = errors.New("invalid wallet address")

	sha256Regexp = regexp.MustCompile(`^[a-f0-9]{64}$`)
	txHashRegexp = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// NormalizeWallet validates a 20-byte hex address and returns it lowercase with 0x prefix.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !strings.HasPrefix(wallet, "0x") && !strings.HasPrefix(wallet, "0X") {
		return "", ErrInvalidWallet
	}
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidWallet
	}
	return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
}

// NormalizeSha256 lowercases a hex digest and reports whether it is a valid sha256 digest.
func NormalizeSha256(digest string) (string, bool) {
	digest = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(digest), "0x"))
	return digest, sha256Regexp.MatchString(digest)
}

func IsTxHash(hash string) bool {
	return txHashRegexp.MatchString(hash)
}

// ProofHash derives the on-chain proof hash: keccak256 over the utf-8 bytes of the lowercase hex digest.
func ProofHash(sha256Hex string) common.Hash {
	return crypto.Keccak256Hash([]byte(strings.ToLower(sha256Hex)))
}

// HashReader streams r through sha256 and returns the hex digest and the number of bytes read.
func HashReader(r io.Reader) (string, int64, error) {
	hash := sha256.New()
	n, err := io.Copy(hash, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}

// GenerateChecksum returns the hex sha256 of data
func GenerateChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	bz := make([]byte, n)
	if _, err := rand.Read(bz); err != nil {
		return "", err
	}
	return hex.EncodeToString(bz), nil
}

// StringToInt64 converts string to int64
func StringToInt64(str string) (int64, error) {
	i64, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, err
	}
	return i64, nil
}

// Int64ToString coverts int64 to string
func Int64ToString(u int64) string {
	return strconv.FormatInt(u, 10)
}

func EqualFoldAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
