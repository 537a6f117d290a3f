package encoding

// NoRune marks a byte with no PDFDocEncoding mapping.
const NoRune = '�'

var pdfDocEncoding = func() [256]rune {
	var t [256]rune
	for i := range t {
		switch {
		case i == '\t' || i == '\n' || i == '\r':
			t[i] = rune(i)
		case i < 0x18, i == 0x7f, i == 0x9f, i == 0xad:
			t[i] = NoRune
		case i >= 0x18 && i < 0x20:
			t[i] = diacritics[i-0x18]
		case i >= 0x80 && i < 0xa1:
			t[i] = high[i-0x80]
		default:
			t[i] = rune(i)
		}
	}
	return t
}()

var diacritics = [8]rune{
	'˘', 'ˇ', 'ˆ', '˙', '˝', '˛', '˚', '˜',
}

var high = [33]rune{
	'•', '†', '‡', '…', '—', '–', 'ƒ', '⁄',
	'‹', '›', '−', '‰', '„', '“', '”', '‘',
	'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š',
	'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', NoRune,
	'€',
}
