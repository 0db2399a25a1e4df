package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	got := parseParams([]string{"18", "F", "2.5", "null", "0x10"})
	assert.Equal(t, []any{int64(18), "F", 2.5, nil, "0x10"}, got)
	assert.Empty(t, parseParams(nil))
}
