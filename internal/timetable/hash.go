package timetable

import (
	"strconv"
	"unicode/utf16"
)

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// FNV1aHex hashes the UTF-16 code units of input with 32-bit FNV-1a and
// returns unpadded lowercase hex. Event IDs and calendar UIDs are derived
// from it, so the output must stay stable across releases: hashing code
// units rather than bytes keeps IDs identical to the ones already handed
// out to subscribed calendars.
func FNV1aHex(input string) string {
	hash := fnvOffset32
	for _, unit := range utf16.Encode([]rune(input)) {
		hash ^= uint32(unit)
		hash *= fnvPrime32
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// StableEventID returns the stable event identifier for an event seed.
func StableEventID(seed string) string {
	return "e" + FNV1aHex(seed)
}
