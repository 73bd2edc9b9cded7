package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormInt(t *testing.T) {
	assert.Equal(t, 140, parseFormInt(" 140 "))
	assert.Equal(t, 0, parseFormInt(""))
	assert.Equal(t, 0, parseFormInt("fast"))
}

func TestParseFormInt64(t *testing.T) {
	assert.Equal(t, int64(2999), parseFormInt64("2999"))
	assert.Equal(t, int64(0), parseFormInt64("9.99"))
}

func TestParseFormBool(t *testing.T) {
	assert.True(t, parseFormBool("true"))
	assert.True(t, parseFormBool("1"))
	assert.False(t, parseFormBool(""))
	assert.False(t, parseFormBool("exclusive"))
}
