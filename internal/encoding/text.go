// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package encoding decodes PDF text strings.
package encoding

import (
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// DecodeText converts a PDF text string to UTF-8. Strings with a UTF-16
// byte order mark are decoded as UTF-16 and NFKC-normalised; others are
// read as PDFDocEncoding. ok is false when s is neither, in which case s
// is returned unchanged.
func DecodeText(s string) (text string, ok bool) {
	if u, isUTF16 := utf16Units(s); isUTF16 {
		return norm.NFKC.String(string(utf16.Decode(u))), true
	}
	if !isPDFDocEncoded(s) {
		return s, false
	}
	return pdfDocDecode(s), true
}

// utf16Units splits s after its byte order mark. A trailing odd byte is
// dropped.
func utf16Units(s string) ([]uint16, bool) {
	if len(s) < 2 {
		return nil, false
	}
	var big bool
	switch s[:2] {
	case "\xfe\xff":
		big = true
	case "\xff\xfe":
	default:
		return nil, false
	}
	u := make([]uint16, 0, len(s)/2-1)
	for i := 2; i+1 < len(s); i += 2 {
		if big {
			u = append(u, uint16(s[i])<<8|uint16(s[i+1]))
		} else {
			u = append(u, uint16(s[i+1])<<8|uint16(s[i]))
		}
	}
	return u, true
}

func isPDFDocEncoded(s string) bool {
	for i := 0; i < len(s); i++ {
		if pdfDocEncoding[s[i]] == NoRune {
			return false
		}
	}
	return true
}

func pdfDocDecode(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if pdfDocEncoding[s[i]] != rune(s[i]) {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	r := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		r[i] = pdfDocEncoding[s[i]]
	}
	return string(r)
}
