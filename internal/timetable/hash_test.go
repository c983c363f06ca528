package timetable

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFNV1aHex(t *testing.T) {
	t.Parallel()

	// Changing these breaks calendar UIDs for every subscriber.
	assert.Equal(t, "4f9f2cab", FNV1aHex("hello"))
	assert.Equal(t, "811c9dc5", FNV1aHex(""))

	assert.NotEqual(t, FNV1aHex("Математика"), FNV1aHex("Физика"))
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), FNV1aHex("2026-02-09|08:00|09:40|1-CS|Мат/Math|D1"))
}

func TestFNV1aHex_MatchesStdlibForASCII(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"a", "08:00|09:40", "1-CS|D1"} {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		assert.Equal(t, strconv.FormatUint(uint64(h.Sum32()), 16), FNV1aHex(s), s)
	}
}

func TestStableEventID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "e4f9f2cab", StableEventID("hello"))
}
