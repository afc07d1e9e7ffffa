// Package posid derives the deterministic position key used to partition
// and route every trade, and the partition index a dispatcher worker should
// own for that key.
package posid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/srviswan/positionengine/internal/engineerr"
)

// Direction is the sign-bearing side of a position, distinguishing LONG
// and SHORT books for the same (account, instrument, currency) triple.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Derive computes the 64-hex-character position key for
// (account, instrument, currency, direction):
// sha256(upper(trim(account)) | "|" | upper(trim(instrument)) | "|" |
// upper(trim(currency)) | "|" | direction) hex-encoded lowercase.
//
// Each of account, instrument, currency must be non-empty after trimming.
func Derive(account, instrument, currency string, direction Direction) (string, error) {
	a := normalize(account)
	i := normalize(instrument)
	c := normalize(currency)
	if a == "" || i == "" || c == "" {
		return "", engineerr.InvalidArgument("account, instrument, and currency must be non-empty")
	}
	if direction != Long && direction != Short {
		return "", engineerr.InvalidArgument("direction must be LONG or SHORT")
	}
	joined := strings.Join([]string{a, i, c, string(direction)}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:]), nil
}

// Inverse recomputes the position key for the opposite direction of the
// same (account, instrument, currency) triple.
func Inverse(account, instrument, currency string, direction Direction) (string, error) {
	return Derive(account, instrument, currency, direction.Flip())
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Partition maps a position key to a worker/shard index in [0, n).
// It decodes the key's first 4 bytes as a big-endian uint32 and reduces
// modulo n. n must be positive.
func Partition(key string, n uint32) (uint32, error) {
	if n == 0 {
		return 0, engineerr.InvalidArgument("partition count must be positive")
	}
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) < 4 {
		return 0, engineerr.InvalidArgument("key is not a valid position key")
	}
	v := binary.BigEndian.Uint32(raw[:4])
	return v % n, nil
}
