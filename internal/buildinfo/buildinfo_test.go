package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })
	Commit = "0123456789abcdef"

	info := Info()
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, "0123456789abcdef", info["commit"])
	assert.NotEmpty(t, info["goVersion"])
	assert.Contains(t, String(), "0123456789ab ")
	assert.NotContains(t, String(), "cdef")
}
