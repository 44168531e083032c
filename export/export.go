// Package export sends telemetry snapshots to InfluxDB. Writes happen on a
// separate goroutine so the refresh tick never waits for the network.
package export

import (
	"context"
	"time"

	d2r2log "github.com/d2r2/go-logger"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/aluedtke7/stick_trail_display/display"
	"github.com/aluedtke7/stick_trail_display/trail"
)

const measurement = "ground_station"

var lg = d2r2log.NewPackageLogger("export", d2r2log.InfoLevel)

// PointWriter is the part of the influx blocking write API used here.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Options struct {
	URL          string
	Token        string
	Org          string
	Bucket       string
	Station      string        // value of the "station" tag
	Interval     time.Duration // minimum time between two points
	WriteTimeout time.Duration
}

type Exporter struct {
	opts     Options
	writer   PointWriter
	client   influxdb2.Client
	frames   chan display.Frame
	done     chan struct{}
	lastSent time.Time
	now      func() time.Time
}

// New connects to the InfluxDB server from opts. It returns nil when no URL or
// token is configured, a nil Exporter accepts and drops all frames.
func New(opts Options) *Exporter {
	if opts.URL == "" || opts.Token == "" {
		lg.Info("InfluxDB export disabled")
		return nil
	}
	client := influxdb2.NewClient(opts.URL, opts.Token)
	e := NewWithWriter(opts, client.WriteAPIBlocking(opts.Org, opts.Bucket))
	e.client = client
	return e
}

// NewWithWriter starts an exporter on an existing writer.
func NewWithWriter(opts Options, w PointWriter) *Exporter {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	e := &Exporter{
		opts:   opts,
		writer: w,
		frames: make(chan display.Frame, 1),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go e.run()
	return e
}

// Offer hands a frame to the writer goroutine. Frames arriving within the
// interval or while a write is pending are dropped. Offer never blocks.
func (e *Exporter) Offer(f display.Frame) bool {
	if e == nil {
		return false
	}
	now := e.now()
	if !e.lastSent.IsZero() && now.Sub(e.lastSent) < e.opts.Interval {
		return false
	}
	select {
	case e.frames <- f:
		e.lastSent = now
		return true
	default:
		return false
	}
}

func (e *Exporter) run() {
	defer close(e.done)
	for f := range e.frames {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.WriteTimeout)
		if err := e.writer.WritePoint(ctx, Point(e.opts.Station, f, e.now())); err != nil {
			lg.Error(err.Error())
		}
		cancel()
	}
}

// Close waits for a pending write and closes the client.
func (e *Exporter) Close() {
	if e == nil {
		return
	}
	close(e.frames)
	<-e.done
	if e.client != nil {
		e.client.Close()
	}
}

// Point converts a frame into an influx point.
func Point(station string, f display.Frame, ts time.Time) *write.Point {
	t := f.Telemetry
	tags := map[string]string{
		"station": station,
	}
	active := 0
	if f.State == trail.Active {
		active = 1
	}
	sd := 0
	if t.SDConnected {
		sd = 1
	}
	fields := map[string]interface{}{
		"bat_percent": t.BatPercent,
		"ping":        t.Ping,
		"packet_loss": t.PacketLoss,
		"sd":          sd,
		"trim_h":      t.HorizTrim,
		"trim_v":      t.VertTrim,
		"stick_h":     t.Horiz,
		"stick_v":     t.Vert,
		"trail_len":   len(f.Trail),
		"active":      active,
	}
	return write.NewPoint(measurement, tags, fields, ts)
}
