package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptionText(t *testing.T) {
	assert.Equal(t, "Hello\nWorld", descriptionText("<p>Hello</p><p>World</p>"))
	assert.Equal(t, "Hello\nWorld", descriptionText("&lt;p&gt;Hello&lt;/p&gt;&lt;p&gt;World&lt;/p&gt;"))
	assert.Equal(t, "plain text", descriptionText("  plain   text "))

	long := strings.Repeat("a", maxDescriptionRunes+10)
	assert.Len(t, []rune(descriptionText(long)), maxDescriptionRunes)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00.123+02:00",
		"2024-03-01T10:00:00",
		"2024-03-01 10:00:00",
		"2024-03-01",
		"Fri, 01 Mar 2024 10:00:00 +0000",
	} {
		got := parseTime(s)
		require.NotNil(t, got, s)
		assert.Equal(t, 2024, got.Year(), s)
	}
	assert.Nil(t, parseTime(""))
	assert.Nil(t, parseTime("yesterday"))
}

func TestUnixTime(t *testing.T) {
	assert.Nil(t, unixTime(0))
	assert.Equal(t, int64(1709287200), unixTime(1709287200).Unix())
	assert.Equal(t, int64(1709287200), unixTime(1709287200000).Unix())
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Empty(t, firstNonEmpty())
	assert.Equal(t, "a, c", joinNonEmpty(", ", "a", " ", "c"))
}
