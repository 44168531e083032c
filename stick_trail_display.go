package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/antigloss/go/logger"
	d2r2log "github.com/d2r2/go-logger"

	"github.com/aluedtke7/stick_trail_display/display"
	"github.com/aluedtke7/stick_trail_display/export"
	"github.com/aluedtke7/stick_trail_display/lcd"
	"github.com/aluedtke7/stick_trail_display/power"
	"github.com/aluedtke7/stick_trail_display/station"
	"github.com/aluedtke7/stick_trail_display/trail"
)

var lg = d2r2log.NewPackageLogger("main", d2r2log.InfoLevel)

type options struct {
	refresh     int
	lcdDelay    int
	lcdAddr     int
	lcdBus      int
	scrollSpeed int
	powerPin    string
	activeLow   bool
	listen      string
	exportEvery int
	station     string
}

// clamp limits v to [lo,hi]
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("stick_trail_display", flag.ContinueOnError)
	fs.IntVar(&o.refresh, "refresh", 50, "display refresh tick in ms (10ms...1000ms)")
	fs.IntVar(&o.lcdDelay, "lcdDelay", 3, "initial delay for LCD in s (1s...10s)")
	fs.IntVar(&o.lcdAddr, "lcdAddr", 0x27, "i2c address of the LCD")
	fs.IntVar(&o.lcdBus, "lcdBus", 1, "i2c bus number of the LCD")
	fs.IntVar(&o.scrollSpeed, "scrollSpeed", 500, "scroll speed in ms (100ms...10000ms)")
	fs.StringVar(&o.powerPin, "powerPin", "", "gpio name of the panel power pin, e.g. GPIO25 (empty = none)")
	fs.BoolVar(&o.activeLow, "activeLow", false, "panel power pin is active low")
	fs.StringVar(&o.listen, "listen", ":8080", "address of the status page (empty = off)")
	fs.IntVar(&o.exportEvery, "exportEvery", 10, "InfluxDB export interval in s (1s...3600s)")
	fs.StringVar(&o.station, "station", "ground", "station tag used for the InfluxDB export")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.lcdAddr < 0x03 || o.lcdAddr > 0x77 {
		return o, fmt.Errorf("lcdAddr 0x%x is not a 7-bit i2c address", o.lcdAddr)
	}
	if o.lcdBus < 0 {
		return o, fmt.Errorf("lcdBus %d is negative", o.lcdBus)
	}
	o.refresh = clamp(o.refresh, 10, 1000)
	o.lcdDelay = clamp(o.lcdDelay, 1, 10)
	o.scrollSpeed = clamp(o.scrollSpeed, 100, 10000)
	o.exportEvery = clamp(o.exportEvery, 1, 3600)
	return o, nil
}

func getHomeDir() string {
	usr, err := user.Current()
	if err != nil {
		return "~/"
	}
	return usr.HomeDir
}

func initLogger() {
	homePath := filepath.Join(getHomeDir(), ".stick_trail_display")
	_ = os.MkdirAll(homePath, os.ModePerm)
	config := logger.Config{
		LogDir:            filepath.Join(homePath, "log"),
		LogFileMaxSize:    2,
		LogFileMaxNum:     30,
		LogFileNumToDel:   3,
		LogDest:           logger.LogDestBoth,
		LogFilenamePrefix: "std",
		LogSymlinkPrefix:  "std",
		Flag:              logger.ControlFlagLogDate | logger.ControlFlagLogFuncName,
	}
	_ = logger.Init(&config)
}

func main() {
	defer func() {
		_ = d2r2log.FinalizeLogger()
	}()
	initLogger()
	defer func() {
		if err := recover(); err != nil {
			logger.Error("Panic occurred:", err)
		}
	}()
	logger.Info("Starting Stick Trail Display...")

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Error(err)
		os.Exit(2)
	}

	var disp display.Display
	disp, err = lcd.New(lcd.Options{
		Address:     uint8(opts.lcdAddr),
		Bus:         opts.lcdBus,
		InitDelay:   time.Duration(opts.lcdDelay) * time.Second,
		ScrollSpeed: time.Duration(opts.scrollSpeed) * time.Millisecond,
		MaxRetries:  5,
	})
	if err != nil {
		logger.Errorf("Couldn't initialize display: %s", err)
	} else {
		defer disp.Close()
	}

	var sw power.Switch = power.Nop{}
	if opts.powerPin != "" {
		g, err := power.NewGPIO(opts.powerPin, opts.activeLow)
		if err != nil {
			logger.Errorf("Couldn't initialize panel power pin: %s", err)
		} else {
			sw = g
		}
	}

	// load influx settings from environment
	url, _ := os.LookupEnv("INFLUX_SRV_URL")
	token, _ := os.LookupEnv("INFLUX_TOKEN")
	org, ok := os.LookupEnv("INFLUX_ORG")
	if !ok {
		org = "privat"
	}
	bucket, ok := os.LookupEnv("INFLUX_BUCKET")
	if !ok {
		bucket = "ground-station"
	}
	logger.Infof("Influx srv url: %s", url)
	exp := export.New(export.Options{
		URL:      url,
		Token:    token,
		Org:      org,
		Bucket:   bucket,
		Station:  opts.station,
		Interval: time.Duration(opts.exportEvery) * time.Second,
	})
	defer exp.Close()

	ctrl := station.New(trail.DefaultConfig(), disp, sw, exp)

	// telemetry frames arrive as JSON lines on stdin
	var src station.Source
	go func() {
		if err := src.Run(os.Stdin); err != nil {
			logger.Error(err)
		}
		logger.Warn("Telemetry input closed")
	}()

	if opts.listen != "" {
		go func() {
			logger.Infof("Status page on %s", opts.listen)
			if err := http.ListenAndServe(opts.listen, ctrl.Handler()); err != nil {
				logger.Error(err)
			}
		}()
	}

	ctrlChan := make(chan os.Signal, 1)
	signal.Notify(ctrlChan, os.Interrupt, syscall.SIGTERM)

	start := time.Now()
	ticker := time.NewTicker(time.Duration(opts.refresh) * time.Millisecond)
	defer ticker.Stop()
	lastState := trail.Active
	for {
		select {
		case <-ctrlChan:
			logger.Info("Ctrl+C received... Exiting")
			return
		case <-ticker.C:
			in, ok := src.Latest()
			if !ok {
				lg.Debug("Waiting for telemetry...")
				continue
			}
			f := ctrl.Tick(uint32(time.Since(start).Milliseconds()), in)
			if f.State != lastState {
				logger.Infof("Display is %s, trail has %d points", f.State, len(f.Trail))
				lastState = f.State
			}
		}
	}
}
