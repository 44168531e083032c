package lcd

import (
	"fmt"
	"time"

	device "github.com/d2r2/go-hd44780"
	"github.com/d2r2/go-i2c"
	d2r2log "github.com/d2r2/go-logger"

	"github.com/aluedtke7/stick_trail_display/display"
)

const (
	numChars = 20
	numLines = 4
)

type cmdKind int

const (
	cmdClear cmdKind = iota
	cmdBacklightOn
	cmdBacklightOff
	cmdPrintline
	cmdQuit
)

var lg = d2r2log.NewPackageLogger("lcd", d2r2log.InfoLevel)

// Options select the I2C bus of the panel.
type Options struct {
	Address     uint8 // usually 0x27 or 0x3f
	Bus         int
	InitDelay   time.Duration
	ScrollSpeed time.Duration
	MaxRetries  int
}

type panel struct {
	opts    Options
	bus     *i2c.I2C
	dev     *device.Lcd
	rows    [numLines]device.ShowOptions
	scroll  [numLines]*scroller
	cmds    chan command
	done    chan struct{}
	retries int
	lightOn bool
}

type scroller struct {
	ticker *time.Ticker
	stop   chan struct{}
}

type command struct {
	kind cmdKind
	row  int
	text string
}

// New opens the 20x4 HD44780 panel and starts the goroutine that owns the bus.
func New(opts Options) (display.Display, error) {
	lg.Debug("LCD initializing...")
	_ = d2r2log.ChangePackageLogLevel("i2c", d2r2log.WarnLevel)
	if opts.ScrollSpeed <= 0 {
		opts.ScrollSpeed = 500 * time.Millisecond
	}
	p := &panel{
		opts: opts,
		cmds: make(chan command, numLines*2),
		done: make(chan struct{}),
	}
	p.rows[0] = device.SHOW_LINE_1 | device.SHOW_BLANK_PADDING | device.SHOW_ELIPSE_IF_NOT_FIT
	p.rows[1] = device.SHOW_LINE_2 | device.SHOW_BLANK_PADDING
	p.rows[2] = device.SHOW_LINE_3 | device.SHOW_BLANK_PADDING
	p.rows[3] = device.SHOW_LINE_4 | device.SHOW_BLANK_PADDING

	if err := p.open(); err != nil {
		return nil, err
	}
	go p.commandHandler()

	p.Clear()
	p.Backlight(true)
	return p, nil
}

// open sets bus and dev only when both could be initialized.
func (p *panel) open() error {
	bus, err := i2c.NewI2C(p.opts.Address, p.opts.Bus)
	if err != nil {
		return fmt.Errorf("open i2c 0x%02x on bus %d: %w", p.opts.Address, p.opts.Bus, err)
	}
	dev, err := device.NewLcd(bus, device.LCD_20x4)
	if err != nil {
		_ = bus.Close()
		return fmt.Errorf("init hd44780: %w", err)
	}
	p.bus, p.dev = bus, dev
	time.Sleep(p.opts.InitDelay)
	return nil
}

func (p *panel) commandHandler() {
	for c := range p.cmds {
		if c.kind == cmdQuit {
			close(p.done)
			return
		}
		if p.dev == nil {
			// lost after a failed reopen, commands are dropped until it is back
			if c.kind == cmdBacklightOn {
				p.lightOn = true
			} else if c.kind == cmdBacklightOff {
				p.lightOn = false
			}
			p.reopen()
			continue
		}
		var err error
		switch c.kind {
		case cmdClear:
			err = p.dev.Clear()
		case cmdBacklightOn:
			err = p.dev.BacklightOn()
			p.lightOn = err == nil
		case cmdBacklightOff:
			err = p.dev.BacklightOff()
			p.lightOn = false
		case cmdPrintline:
			err = p.dev.ShowMessage(padEmpty(c.text), p.rows[c.row])
		}
		if err != nil {
			lg.Error(err.Error())
			p.reopen()
		}
	}
}

// reopen tries to get the panel back after a bus error, the display keeps
// running without output once MaxRetries is used up.
func (p *panel) reopen() {
	if p.opts.MaxRetries > 0 && p.retries >= p.opts.MaxRetries {
		return
	}
	p.retries++
	lg.Infof("Reopening LCD, attempt %d", p.retries)
	if p.bus != nil {
		_ = p.bus.Close()
	}
	p.bus, p.dev = nil, nil
	if err := p.open(); err != nil {
		lg.Error(err.Error())
		return
	}
	if err := p.dev.Clear(); err != nil {
		lg.Error(err.Error())
	}
	if p.lightOn {
		_ = p.dev.BacklightOn()
	}
}

func (p *panel) send(c command) {
	select {
	case <-p.done:
	case p.cmds <- c:
	}
}

func (p *panel) stopScroll(row int) {
	if sc := p.scroll[row]; sc != nil {
		sc.ticker.Stop()
		close(sc.stop)
		p.scroll[row] = nil
	}
}

func (p *panel) runScroll(row int, sc *scroller, text string) {
	s := text + "     "
	for {
		select {
		case <-sc.stop:
			return
		case <-sc.ticker.C:
			p.send(command{kind: cmdPrintline, row: row, text: s})
			s = rotate(s)
		}
	}
}

func (p *panel) Backlight(on bool) {
	if on {
		p.send(command{kind: cmdBacklightOn})
	} else {
		p.send(command{kind: cmdBacklightOff})
	}
}

func (p *panel) ClearLine(row int) {
	p.PrintLine(row, "", false)
}

func (p *panel) Clear() {
	for i := range p.scroll {
		p.stopScroll(i)
	}
	p.send(command{kind: cmdClear})
}

func (p *panel) Close() {
	for i := range p.scroll {
		p.stopScroll(i)
	}
	p.send(command{kind: cmdQuit})
	<-p.done
	if p.bus != nil {
		_ = p.bus.Close()
	}
}

func (p *panel) PrintLine(row int, text string, scroll bool) {
	if row < 0 || row >= numLines {
		lg.Error("LCD display row is out of bounds: ", row)
		return
	}
	p.stopScroll(row)
	if scroll && len(text) > numChars {
		sc := &scroller{ticker: time.NewTicker(p.opts.ScrollSpeed), stop: make(chan struct{})}
		p.scroll[row] = sc
		go p.runScroll(row, sc, text)
		return
	}
	p.send(command{kind: cmdPrintline, row: row, text: text})
}

func (p *panel) GetCharsPerLine() int {
	return numChars
}

func (p *panel) GetMinMaxRowNum() (int, int) {
	return 0, numLines - 1
}

// the hd44780 library can't handle empty strings
func padEmpty(s string) string {
	if len(s) == 0 {
		return " "
	}
	return s
}

func rotate(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[1:] + s[:1]
}
