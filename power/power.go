// Package power switches the supply of the display panel. The station only
// decides when the panel may be off, this package does the pin handling.
package power

import (
	"fmt"
	"sync"

	d2r2log "github.com/d2r2/go-logger"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var lg = d2r2log.NewPackageLogger("power", d2r2log.InfoLevel)

// Switch turns the panel supply on or off.
type Switch interface {
	Set(on bool) error
}

// GPIO drives a panel power (or backlight enable) pin.
type GPIO struct {
	pin       gpio.PinOut
	activeLow bool
	on        bool
}

var hostOnce sync.Once
var hostErr error

func initHost() error {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	return hostErr
}

// NewGPIO loads the periph host drivers and looks up the named pin, e.g. "GPIO25".
// The panel is switched on right away.
func NewGPIO(name string, activeLow bool) (*GPIO, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("load gpio drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find %s", name)
	}
	return newGPIO(pin, activeLow)
}

func newGPIO(pin gpio.PinOut, activeLow bool) (*GPIO, error) {
	g := &GPIO{pin: pin, activeLow: activeLow}
	if err := g.Set(true); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GPIO) Set(on bool) error {
	if err := g.pin.Out(level(on, g.activeLow)); err != nil {
		return fmt.Errorf("set %s: %w", g.pin.Name(), err)
	}
	if g.on != on {
		lg.Debugf("Panel power %s: %t", g.pin.Name(), on)
	}
	g.on = on
	return nil
}

func (g *GPIO) On() bool {
	return g.on
}

// level returns the pin level for the wanted state (active low inverts)
func level(on, activeLow bool) gpio.Level {
	if activeLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

// Nop is used when no power pin is configured.
type Nop struct{}

func (Nop) Set(on bool) error { return nil }
