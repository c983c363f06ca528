package timetable

import "strings"

// Labels is a subject name split into its Russian and German halves.
type Labels struct {
	Ru         string
	De         string
	LessonType string
}

// IsMissingGermanName reports whether the text after the first slash starts
// with a Cyrillic letter, which means the "translation" is Kazakh rather
// than German.
func IsMissingGermanName(subjectFullRaw string) bool {
	_, after, found := strings.Cut(subjectFullRaw, "/")
	if !found {
		return false
	}
	return cyrillicAfterSlash.MatchString(strings.TrimSpace(after))
}

// SplitBilingualLabel splits "Русский/Deutsch тип" into its parts. When
// noGerman is set the German label falls back to the Russian one.
func SplitBilingualLabel(raw string, noGerman bool) Labels {
	value := strings.TrimSpace(stripMarkers(raw))

	left, rest, found := strings.Cut(value, "/")
	if !found {
		if loc := knownLessonType.FindStringSubmatchIndex(value); loc != nil {
			stripped := strings.TrimSpace(value[:loc[0]])
			return Labels{Ru: stripped, De: stripped, LessonType: value[loc[2]:loc[3]]}
		}
		return Labels{Ru: value, De: value}
	}

	ru := strings.TrimSpace(left)
	if ru == "" {
		ru = value
	}
	rest = strings.TrimSpace(rest)

	var lessonType string
	if m := lessonTypeSuffix.FindStringSubmatch(rest); m != nil {
		lessonType = m[1]
	}
	if noGerman {
		return Labels{Ru: ru, De: ru, LessonType: lessonType}
	}

	de := rest
	if m := germanNamePrefix.FindStringSubmatch(rest); m != nil {
		de = strings.TrimSpace(m[1])
	}
	if de == "" {
		de = value
	}
	return Labels{Ru: ru, De: de, LessonType: lessonType}
}
