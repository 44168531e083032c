package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 50, o.refresh)
	assert.Equal(t, 0x27, o.lcdAddr)
	assert.Equal(t, ":8080", o.listen)
	assert.Empty(t, o.powerPin)
}

func TestParseFlagsClamps(t *testing.T) {
	o, err := parseFlags([]string{"-refresh=1", "-lcdDelay=60", "-scrollSpeed=5", "-exportEvery=0", "-powerPin=GPIO25", "-activeLow"})
	require.NoError(t, err)
	assert.Equal(t, 10, o.refresh)
	assert.Equal(t, 10, o.lcdDelay)
	assert.Equal(t, 100, o.scrollSpeed)
	assert.Equal(t, 1, o.exportEvery)
	assert.Equal(t, "GPIO25", o.powerPin)
	assert.True(t, o.activeLow)
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	_, err := parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestParseFlagsRejectsBadI2C(t *testing.T) {
	_, err := parseFlags([]string{"-lcdAddr=300"})
	assert.ErrorContains(t, err, "lcdAddr")

	_, err = parseFlags([]string{"-lcdBus=-1"})
	assert.ErrorContains(t, err, "lcdBus")

	o, err := parseFlags([]string{"-lcdAddr=0x3f", "-lcdBus=0"})
	require.NoError(t, err)
	assert.Equal(t, 0x3f, o.lcdAddr)
}
