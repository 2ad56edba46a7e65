package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijk", 10))

	// Multi-byte content is cut on rune boundaries, never mid-character.
	got := truncate(strings.Repeat("日本語の監査ログ", 20), 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.Equal(t, "日本語の監査ロ...", got)
}
