package station

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluedtke7/stick_trail_display/display"
	"github.com/aluedtke7/stick_trail_display/trail"
)

type fakeDisplay struct {
	backlight []bool
	prints    int
}

func (f *fakeDisplay) Backlight(on bool) { f.backlight = append(f.backlight, on) }
func (f *fakeDisplay) Clear() {}
func (f *fakeDisplay) ClearLine(ofs int) {}
func (f *fakeDisplay) Close() {}
func (f *fakeDisplay) GetCharsPerLine() int { return 20 }
func (f *fakeDisplay) GetMinMaxRowNum() (int, int) { return 0, 3 }
func (f *fakeDisplay) PrintLine(int, string, bool) { f.prints++ }

type fakeSwitch struct {
	states []bool
	err    error
}

func (s *fakeSwitch) Set(on bool) error {
	s.states = append(s.states, on)
	return s.err
}

type fakeExporter struct {
	frames []display.Frame
}

func (e *fakeExporter) Offer(f display.Frame) bool {
	e.frames = append(e.frames, f)
	return true
}

func centered(vert, horiz int) trail.Input {
	return trail.Input{
		Vert: vert, Horiz: horiz,
		HorizMin: -100, HorizMax: 100,
		VertMin: -100, VertMax: 100,
		BatPercent: 90, Ping: 20,
	}
}

func TestTickScenario(t *testing.T) {
	d := &fakeDisplay{}
	sw := &fakeSwitch{}
	exp := &fakeExporter{}
	c := New(trail.DefaultConfig(), d, sw, exp)

	f := c.Tick(0, centered(0, 0))
	assert.Equal(t, trail.Active, f.State)
	require.Len(t, f.Trail, 1)
	assert.Equal(t, trail.Point{X: trail.Scale(0, -100, 100, trail.PlotWidth), Y: trail.Scale(0, -100, 100, trail.PlotHeight)}, f.Trail[0])
	assert.Equal(t, []bool{true}, sw.states)
	assert.Equal(t, 4, d.prints)

	idleAt := uint32(0)
	for i := 1; i <= 40; i++ {
		now := uint32(i * 1000)
		f = c.Tick(now, centered(0, 0))
		if f.State == trail.Idle && idleAt == 0 {
			idleAt = now
		}
		assert.LessOrEqual(t, len(f.Trail), trail.BufferSize)
	}
	assert.Equal(t, uint32(trail.TurnOffTime), idleAt)
	assert.Equal(t, []bool{true, false}, sw.states)
	assert.Equal(t, []bool{true, false}, d.backlight)
	assert.Len(t, exp.frames, 41)
	assert.Greater(t, len(f.Trail), 1)

	f = c.Tick(41000, centered(50, 0))
	assert.Equal(t, trail.Active, f.State)
	assert.Equal(t, []bool{true, false, true}, sw.states)
}

func TestNoRenderingWhileIdle(t *testing.T) {
	d := &fakeDisplay{}
	c := New(trail.DefaultConfig(), d, nil, nil)
	c.Tick(0, centered(0, 0))
	c.Tick(trail.TurnOffTime, centered(0, 0))
	prints := d.prints

	in := centered(0, 0)
	in.Ping = 99
	c.Tick(trail.TurnOffTime+100, in)
	assert.Equal(t, prints, d.prints)
}

func TestPowerErrorsDoNotStopTick(t *testing.T) {
	sw := &fakeSwitch{err: errors.New("pin busy")}
	c := New(trail.DefaultConfig(), nil, sw, nil)
	f := c.Tick(0, centered(0, 0))
	assert.Equal(t, trail.Active, f.State)
	assert.Len(t, sw.states, 1)
}

func TestInitStartsFreshTrail(t *testing.T) {
	c := New(trail.DefaultConfig(), nil, nil, nil)
	c.Tick(0, centered(0, 0))
	c.Tick(10, centered(80, 0))
	require.Equal(t, 2, c.Stats().Len)

	c.Init()
	f := c.Tick(20, centered(80, 0))
	assert.Len(t, f.Trail, 1)
}

func TestSource(t *testing.T) {
	var s Source
	_, ok := s.Latest()
	assert.False(t, ok)

	r := strings.NewReader(`{"vert":12,"horiz":-3,"bat_percent":55.5,"sd_connected":true}
not json

{"vert":40,"horiz":2,"ping":31}
`)
	require.NoError(t, s.Run(r))

	in, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, 40, in.Vert)
	assert.Equal(t, float32(31), in.Ping)
	assert.False(t, in.SDConnected)

	received, bad := s.Counts()
	assert.Equal(t, uint64(2), received)
	assert.Equal(t, uint64(1), bad)
}

func TestSourceSkipsOversizedLine(t *testing.T) {
	var s Source
	junk := strings.Repeat("x", 70*1024)
	r := strings.NewReader(`{"vert":1}` + "\n" + junk + "\n" + `{"vert":40}`)
	require.NoError(t, s.Run(r))

	in, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 40, in.Vert)
	received, bad := s.Counts()
	assert.Equal(t, uint64(2), received)
	assert.Equal(t, uint64(1), bad)
}

func TestHandler(t *testing.T) {
	c := New(trail.DefaultConfig(), nil, nil, nil)
	c.Tick(0, centered(0, 0))
	c.Tick(500, centered(60, 60))
	h := c.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAT: 90%")
	assert.Contains(t, rec.Body.String(), "Display is active")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var inf struct {
		Frame struct {
			State string        `json:"state"`
			Trail []trail.Point `json:"trail"`
		} `json:"frame"`
		Ticks uint64      `json:"ticks"`
		Stats trail.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inf))
	assert.Equal(t, "active", inf.Frame.State)
	assert.Len(t, inf.Frame.Trail, 2)
	assert.Equal(t, uint64(2), inf.Ticks)
	assert.Equal(t, 2, inf.Stats.Head)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/info", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
