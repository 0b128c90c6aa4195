package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCheckboxChecked(t *testing.T) {
	checked := []interface{}{true, 1, float64(1), "on"}
	for _, v := range checked {
		assert.True(t, IsCheckboxChecked(v), "%v", v)
	}

	unchecked := []interface{}{false, 0, float64(0), 2, "true", "1", "off", "", nil}
	for _, v := range unchecked {
		assert.False(t, IsCheckboxChecked(v), "%v", v)
	}
}

func TestStringToInt(t *testing.T) {
	assert.Equal(t, 42, StringToInt("42"))
	assert.Equal(t, -7, StringToInt("-7"))
	assert.Equal(t, 0, StringToInt("nope"))
	assert.Equal(t, 0, StringToInt(""))
}

func TestHashString(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashString("hello"))
	assert.NotEqual(t, HashString("a"), HashString("b"))
}

func TestRandStringLength(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := RandStringBytesMaskImpr(8)
		assert.Len(t, s, 8)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 90)
}
