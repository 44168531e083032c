// Package station runs one display refresh tick: it feeds the stick trail
// tracker, draws the telemetry while the display is active and switches the
// panel off after the stick was left alone.
package station

import (
	"sync"

	d2r2log "github.com/d2r2/go-logger"

	"github.com/aluedtke7/stick_trail_display/display"
	"github.com/aluedtke7/stick_trail_display/power"
	"github.com/aluedtke7/stick_trail_display/trail"
)

var lg = d2r2log.NewPackageLogger("station", d2r2log.InfoLevel)

// Exporter receives frames for long term storage, it must not block.
type Exporter interface {
	Offer(f display.Frame) bool
}

type Controller struct {
	tracker  *trail.Tracker
	disp     display.Display
	renderer *display.Renderer
	power    power.Switch
	exporter Exporter

	state   trail.State
	started bool

	mu     sync.RWMutex
	latest display.Frame
	stats  trail.Stats
	ticks  uint64
}

// New creates a controller, disp and exporter may be nil.
func New(cfg trail.Config, disp display.Display, sw power.Switch, exp Exporter) *Controller {
	if sw == nil {
		sw = power.Nop{}
	}
	c := &Controller{
		tracker:  trail.New(cfg),
		disp:     disp,
		power:    sw,
		exporter: exp,
	}
	if disp != nil {
		c.renderer = display.NewRenderer(disp)
	}
	return c
}

// Init resets the tracker, the next tick starts a fresh trail.
func (c *Controller) Init() {
	c.tracker.Init()
	c.started = false
	if c.renderer != nil {
		c.renderer.Reset()
	}
}

// Tick is called once per refresh tick from the control loop.
func (c *Controller) Tick(nowMillis uint32, in trail.Input) display.Frame {
	st := c.tracker.Update(nowMillis, in)
	f := display.NewFrame(nowMillis, st, c.tracker.Trail(), in)

	if !c.started || st != c.state {
		c.switchState(st)
	}
	c.state = st
	c.started = true

	if st == trail.Active && c.renderer != nil {
		c.renderer.Render(f)
	}
	if c.exporter != nil {
		c.exporter.Offer(f)
	}

	stats := c.tracker.Stats()
	c.mu.Lock()
	c.latest = f
	c.stats = stats
	c.ticks++
	c.mu.Unlock()
	return f
}

func (c *Controller) switchState(st trail.State) {
	on := st == trail.Active
	if c.started {
		lg.Infof("Display %s", st)
	}
	if err := c.power.Set(on); err != nil {
		lg.Error(err.Error())
	}
	if c.disp != nil {
		c.disp.Backlight(on)
		if on && c.renderer != nil {
			// panel may have lost its content while unpowered
			c.renderer.Reset()
		}
	}
}

// Latest returns the last frame, safe to call from other goroutines.
func (c *Controller) Latest() (display.Frame, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.ticks
}

// Stats returns the tracker bookkeeping as of the last tick.
func (c *Controller) Stats() trail.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
