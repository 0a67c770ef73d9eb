package outbox

import (
	"strings"
	"unicode/utf16"
)

// Segment sizes. A message that fits one segment uses the single size,
// longer ones lose room to the concatenation header.
const (
	gsmSingle  = 160
	gsmMulti   = 153
	ucs2Single = 70
	ucs2Multi  = 67
)

// Encoding is the alphabet a text is sent in.
type Encoding int

const (
	GSM7 Encoding = iota
	UCS2
)

func (e Encoding) String() string {
	if e == GSM7 {
		return "gsm7"
	}
	return "ucs2"
}

const gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

// Extension characters take an escape septet plus their own.
const gsmExtension = "^{}\\[~]|€\f"

func septets(r rune) int {
	switch {
	case strings.ContainsRune(gsmBasic, r):
		return 1
	case strings.ContainsRune(gsmExtension, r):
		return 2
	default:
		return 0
	}
}

// EncodingOf returns GSM7 when every character of body is in the GSM
// default alphabet or its extension table.
func EncodingOf(body string) Encoding {
	for _, r := range body {
		if septets(r) == 0 {
			return UCS2
		}
	}
	return GSM7
}

// Segment splits body into the parts it is transmitted as. A body that
// fits one part is returned whole. Extension characters and surrogate
// pairs are never split.
func Segment(body string) []string {
	enc := EncodingOf(body)
	width := func(r rune) int { return septets(r) }
	single, multi := gsmSingle, gsmMulti
	if enc == UCS2 {
		width = utf16.RuneLen
		single, multi = ucs2Single, ucs2Multi
	}

	total := 0
	for _, r := range body {
		total += width(r)
	}
	if total <= single {
		return []string{body}
	}

	var parts []string
	var cur strings.Builder
	used := 0
	for _, r := range body {
		w := width(r)
		if used+w > multi {
			parts = append(parts, cur.String())
			cur.Reset()
			used = 0
		}
		cur.WriteRune(r)
		used += w
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
