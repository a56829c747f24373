package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	h := Collect()
	assert.NotEmpty(t, h.Platform)
	assert.Positive(t, h.Cores)
}

func TestFormatGB(t *testing.T) {
	assert.Equal(t, "16 GB", FormatGB(16<<30))
	assert.Equal(t, "0 GB", FormatGB(512<<20))
}
