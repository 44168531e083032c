package power

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, gpio.High, level(true, false))
	assert.Equal(t, gpio.Low, level(false, false))
	assert.Equal(t, gpio.Low, level(true, true))
	assert.Equal(t, gpio.High, level(false, true))
}

func TestGPIOSwitchesPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO25", L: gpio.Low}
	g, err := newGPIO(pin, true)
	require.NoError(t, err)
	assert.True(t, g.On())
	assert.Equal(t, gpio.Low, pin.Read())

	require.NoError(t, g.Set(false))
	assert.False(t, g.On())
	assert.Equal(t, gpio.High, pin.Read())
}

type brokenPin struct {
	gpiotest.Pin
}

func (b *brokenPin) Out(l gpio.Level) error {
	return errors.New("bus gone")
}

func TestGPIOReportsPinErrors(t *testing.T) {
	_, err := newGPIO(&brokenPin{gpiotest.Pin{N: "GPIO4"}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPIO4")
}

func TestNop(t *testing.T) {
	var s Switch = Nop{}
	assert.NoError(t, s.Set(false))
}
