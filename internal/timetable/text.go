package timetable

import (
	"regexp"
	"strconv"
	"strings"
)

// cyrillicClass covers Russian plus the Kazakh-specific letters used upstream.
const cyrillicClass = `А-Яа-яЁёҚқӘәҒғҢңӨөҰұҮүІіҺһ`

var (
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	numericEntity      = regexp.MustCompile(`&#(\d+);`)
	leadingMarkers     = regexp.MustCompile(`^[.*]+`)
	leadingDashes      = regexp.MustCompile(`^-+`)
	parenSuffix        = regexp.MustCompile(`\s*\(.*$`)
	germanNamePrefix   = regexp.MustCompile(`^(.*?)\s+[` + cyrillicClass + `]`)
	lessonTypeSuffix   = regexp.MustCompile(`\s+([` + cyrillicClass + `].*)$`)
	knownLessonType    = regexp.MustCompile(`\s+(пр\.|лек\.|лекция|практика|семинар)$`)
	cyrillicAfterSlash = regexp.MustCompile(`^[` + cyrillicClass + `]`)
)

// DecodeHTML replaces the handful of entities the upstream pages use.
// Replacement is sequential, so "&amp;lt;" decodes all the way to "<".
func DecodeHTML(value string) string {
	value = strings.ReplaceAll(value, "&nbsp;", " ")
	value = strings.ReplaceAll(value, "&amp;", "&")
	value = strings.ReplaceAll(value, "&quot;", `"`)
	value = strings.ReplaceAll(value, "&#39;", "'")
	value = strings.ReplaceAll(value, "&lt;", "<")
	value = strings.ReplaceAll(value, "&gt;", ">")
	return numericEntity.ReplaceAllStringFunc(value, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || n <= 0 || n > 0x10FFFF {
			return m
		}
		return string(rune(n))
	})
}

// StripTags replaces every tag with a space and decodes entities.
func StripTags(input string) string {
	return DecodeHTML(tagPattern.ReplaceAllString(input, " "))
}

// CleanText strips tags, decodes entities and collapses all whitespace
// (including non-breaking spaces) into single spaces.
func CleanText(input string) string {
	return strings.Join(strings.Fields(StripTags(input)), " ")
}

// CollapseSpaces folds Unicode whitespace runs of already-decoded DOM text
// into single spaces. Entities and tags are left alone.
func CollapseSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// stripMarkers drops the leading "." and "*" markers the upstream uses to
// flag optional or shared lessons.
func stripMarkers(value string) string {
	return leadingMarkers.ReplaceAllString(value, "")
}

// RussianOnlyLabel returns the part before the first slash.
//
//	RussianOnlyLabel("Социология/Soziologie лекция") == "Социология"
func RussianOnlyLabel(input string) string {
	value := stripMarkers(CleanText(input))
	left, _, found := strings.Cut(value, "/")
	if !found {
		return value
	}
	if left = strings.TrimSpace(left); left != "" {
		return left
	}
	return value
}

// GermanOnlyLabel returns the part after the first slash with any trailing
// Cyrillic lesson type removed.
//
//	GermanOnlyLabel("Немецкий язык/Deutsch пр.") == "Deutsch"
func GermanOnlyLabel(input string) string {
	value := stripMarkers(CleanText(input))
	_, rest, found := strings.Cut(value, "/")
	if !found {
		return value
	}
	rest = strings.TrimSpace(rest)
	if m := germanNamePrefix.FindStringSubmatch(rest); m != nil {
		rest = strings.TrimSpace(m[1])
	}
	if rest == "" {
		return value
	}
	return rest
}

// ExtractLessonType returns the Cyrillic lesson type suffix of a subject name,
// e.g. "лекция/семинар" or "пр.", or "" when there is none.
func ExtractLessonType(input string) string {
	value := stripMarkers(CleanText(input))
	_, rest, found := strings.Cut(value, "/")
	if !found {
		if m := knownLessonType.FindStringSubmatch(value); m != nil {
			return m[1]
		}
		return ""
	}
	if m := lessonTypeSuffix.FindStringSubmatch(strings.TrimSpace(rest)); m != nil {
		return m[1]
	}
	return ""
}

// StripParenSuffix removes everything from the first "(" on.
func StripParenSuffix(value string) string {
	return parenSuffix.ReplaceAllString(value, "")
}

// NormalizeCodeKey builds the lookup key for a legend code: leading markers
// and all whitespace removed, one trailing slash dropped, upper-cased.
func NormalizeCodeKey(input string) string {
	value := stripMarkers(CleanText(input))
	value = strings.Join(strings.Fields(value), "")
	value = strings.TrimSuffix(value, "/")
	return strings.ToUpper(value)
}

// LeftSideCode normalizes the part of a code before the first slash.
func LeftSideCode(input string) string {
	left, _, _ := strings.Cut(CleanText(input), "/")
	return NormalizeCodeKey(left)
}

// SanitizeLabel strips one trailing slash and leading dashes left over by
// upstream data entry.
func SanitizeLabel(value string) string {
	value = strings.TrimSuffix(value, "/")
	value = leadingDashes.ReplaceAllString(value, "")
	return strings.TrimSpace(value)
}
