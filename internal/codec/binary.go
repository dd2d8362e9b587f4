package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxBlobSize is the hard cap on a decoded binary cell (10 MiB).
const MaxBlobSize = 10 << 20

// HexUpper renders b as upper-case hexadecimal, the canonical text form of
// raw and blob cells.
func HexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func isHexString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return len(s) > 0
}

// ParseBinary decodes a textual binary cell. A 0x/0X prefix forces hex;
// otherwise an even-length all-hex string is hex, anything else is
// base-64. Inputs whose decoded size would exceed MaxBlobSize are
// rejected.
func ParseBinary(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	forced := false
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		forced = true
	}
	if forced || (len(s)%2 == 0 && isHexString(s)) {
		if len(s)/2 > MaxBlobSize {
			return nil, fmt.Errorf("binary value exceeds %d bytes", MaxBlobSize)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex value: %w", err)
		}
		return b, nil
	}
	if base64.StdEncoding.DecodedLen(len(s)) > MaxBlobSize {
		return nil, fmt.Errorf("binary value exceeds %d bytes", MaxBlobSize)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid binary value: %w", err)
	}
	return b, nil
}
