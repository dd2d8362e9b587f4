package csvio

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DetectCharset guesses the charset of a file from its first few KiB.
// BOMs win outright; otherwise high bytes are scored against Latin, CJK
// and Cyrillic ranges. UTF-8 is the answer on ties and for empty or pure
// ASCII input.
func DetectCharset(head []byte) string {
	if len(head) >= 3 && bytes.Equal(head[:3], utf8BOM[:]) {
		return "UTF-8"
	}
	if len(head) >= 2 {
		if head[0] == 0xFF && head[1] == 0xFE {
			return "UTF-16LE"
		}
		if head[0] == 0xFE && head[1] == 0xFF {
			return "UTF-16BE"
		}
	}
	if utf8.Valid(head) {
		return "UTF-8"
	}

	var latin, cjk, cyrillic int
	for i := 0; i < len(head); i++ {
		b := head[i]
		if b < 0x80 {
			continue
		}
		switch {
		case b >= 0x81 && b <= 0xFE && i+1 < len(head) && head[i+1] >= 0x40:
			// Plausible double-byte lead+trail pair.
			cjk += 2
			i++
		case b >= 0xC0 && b <= 0xDF:
			cyrillic++
			latin++
		default:
			latin++
		}
	}

	switch {
	case cjk > latin && cjk > cyrillic:
		return "GBK"
	case cyrillic > latin:
		return "KOI8-R"
	case latin > 0:
		return "WINDOWS-1252"
	default:
		return "UTF-8"
	}
}

// EncodingByName maps a charset name to its x/text encoding. UTF-8 (and
// the empty name) map to nil, meaning no transform is needed.
func EncodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "AUTO", "UTF-8", "UTF8":
		return nil, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return charmap.ISO8859_1, nil
	case "ISO-8859-2", "ISO8859-2", "LATIN2":
		return charmap.ISO8859_2, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "WINDOWS-1251", "CP1251":
		return charmap.Windows1251, nil
	case "KOI8-R":
		return charmap.KOI8R, nil
	case "GBK", "GB2312":
		return simplifiedchinese.GBK, nil
	case "SHIFT_JIS", "SJIS", "SHIFT-JIS":
		return japanese.ShiftJIS, nil
	case "EUC-JP":
		return japanese.EUCJP, nil
	default:
		return nil, fmt.Errorf("unknown charset %q", name)
	}
}

// DecodingReader wraps r so it yields UTF-8 regardless of the named source
// charset.
func DecodingReader(r io.Reader, charset string) (io.Reader, error) {
	enc, err := EncodingByName(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
