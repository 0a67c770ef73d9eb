package parts

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// mibCharsets maps the MIBenum values carriers put in the charset column.
var mibCharsets = map[string]string{
	"3":    "US-ASCII",
	"4":    "ISO-8859-1",
	"106":  "UTF-8",
	"1000": "ISO-10646-UCS-2",
	"1015": "UTF-16",
	"2025": "GB2312",
	"2026": "Big5",
	"17":   "Shift_JIS",
}

// fallbackEncodings are tried in order when detection is inconclusive.
var fallbackEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
	japanese.ShiftJIS,
	korean.EUCKR,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
}

// lookupCharset resolves an IANA name or MIBenum to an encoding.
func lookupCharset(name string) encoding.Encoding {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if mapped, ok := mibCharsets[name]; ok {
		name = mapped
	}
	if strings.EqualFold(name, "ISO-10646-UCS-2") {
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

// decodeText converts raw part bytes to UTF-8 using the declared charset,
// then detection, then common legacy encodings.
func decodeText(raw []byte, charset string) (string, bool) {
	if enc := lookupCharset(charset); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
			return string(decoded), true
		}
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}

	minConfidence := 30
	if len(raw) > 50 {
		minConfidence = 50
	}
	if result, err := chardet.NewTextDetector().DetectBest(raw); err == nil && result.Confidence >= minConfidence {
		if enc := lookupCharset(result.Charset); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
				return string(decoded), true
			}
		}
	}
	for _, enc := range fallbackEncodings {
		if decoded, err := enc.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
			return string(decoded), true
		}
	}
	return strings.ToValidUTF8(string(raw), "�"), false
}
