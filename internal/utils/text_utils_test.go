package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "anything", tp.TruncateText("anything", 0))

	out := tp.TruncateText("héllo wörld", 5)
	assert.Equal(t, "héllo\n"+TruncationMarker, out)
}

func TestTruncateTextCountsRunes(t *testing.T) {
	tp := NewTextProcessor(nil)
	text := strings.Repeat("é", 10)
	assert.Equal(t, text, tp.TruncateText(text, 10))
	assert.True(t, strings.HasPrefix(tp.TruncateText(text, 9), strings.Repeat("é", 9)+"\n"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)
	assert.Equal(t, "ok", tp.SanitizeUTF8("ok"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(nil)
	out := tp.ProcessText("a\xffbcdef", 3)
	assert.Equal(t, "abc\n"+TruncationMarker, out)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "Re Q3 report - final", SanitizeFileName("Re: Q3 report - final"))
	assert.Equal(t, "a b c", SanitizeFileName("a/b\\c"))
	assert.Equal(t, "untitled", SanitizeFileName("  ..  "))
	assert.Equal(t, "tabs and lines", SanitizeFileName("tabs\tand\nlines"))
	assert.Len(t, []rune(SanitizeFileName(strings.Repeat("x", 500))), maxFileNameRunes)
}
