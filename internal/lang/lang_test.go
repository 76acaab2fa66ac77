package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "ja", Code("Japanese"))
	assert.Equal(t, "en", Code("english"))
	assert.Equal(t, "ko", Code(" Korean "))
	assert.Equal(t, "pt-BR", Code("Brazilian Portuguese"))
	assert.Equal(t, "de", Code("de"))
	assert.Equal(t, "", Code("not a language !!"))
}

func TestRTLReading(t *testing.T) {
	assert.True(t, RTLReading("Japanese"))
	assert.True(t, RTLReading("japanese"))
	assert.False(t, RTLReading("Korean"))
	assert.False(t, RTLReading("English"))
}

func TestNoWordSpaces(t *testing.T) {
	assert.True(t, NoWordSpaces("ja"))
	assert.True(t, NoWordSpaces("zh-Hans"))
	assert.True(t, NoWordSpaces("th"))
	assert.False(t, NoWordSpaces("en"))
	assert.False(t, NoWordSpaces("tha")) // not a prefix match
}

func TestUpper(t *testing.T) {
	assert.Equal(t, "HELLO", Upper("hello", "en"))
	// Turkish dotless i casing.
	assert.Equal(t, "İSTANBUL", Upper("istanbul", "tr"))
	// Unknown code falls back to Unicode default casing.
	assert.Equal(t, "ABC", Upper("abc", ""))
}
