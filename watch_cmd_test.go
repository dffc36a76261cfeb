package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWatchCmd_Metadata(t *testing.T) {
	cmd := newWatchCmd()
	assert.Equal(t, "watch", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
