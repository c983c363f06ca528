package schedule

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// transliteration covers Russian and Kazakh letters; other letters with
// diacritics are reduced to their base letter by NFD decomposition.
var transliteration = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch", 'ш': "sh", 'щ': "sh", 'ъ': "u",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'ә': "a", 'ғ': "g", 'қ': "k", 'ң': "n", 'ө': "o", 'ұ': "u", 'ү': "u",
	'һ': "h", 'і': "i", 'ß': "ss",
}

// Slugify turns a group code into a URL path segment: lower case ASCII
// letters and digits, runs of anything else collapsed to a single dash.
// "1А-ИБ" becomes "1a-ib" and "1-IM-IBE гр.1(MA)" becomes "1-im-ibe-gr1ma".
func Slugify(text string) string {
	var words strings.Builder
	for _, r := range norm.NFC.String(strings.ToLower(text)) {
		if repl, ok := transliteration[r]; ok {
			words.WriteString(repl)
			continue
		}
		if r == '-' || unicode.IsSpace(r) {
			words.WriteByte(' ')
			continue
		}
		for _, base := range norm.NFD.String(string(r)) {
			if base < unicode.MaxASCII && (unicode.IsLetter(base) || unicode.IsDigit(base)) {
				words.WriteRune(base)
			}
		}
	}
	return strings.Join(strings.Fields(words.String()), "-")
}
