package display

import (
	"fmt"
	"strings"

	"github.com/aluedtke7/stick_trail_display/trail"
)

// Frame is everything the panel shows for one refresh tick. Telemetry is only a
// snapshot of the caller's values.
type Frame struct {
	Millis    uint32        `json:"millis"`
	State     trail.State   `json:"-"`
	StateName string        `json:"state"`
	Trail     []trail.Point `json:"trail"`
	Telemetry trail.Input   `json:"telemetry"`
}

func NewFrame(millis uint32, state trail.State, pts []trail.Point, in trail.Input) Frame {
	return Frame{
		Millis:    millis,
		State:     state,
		StateName: state.String(),
		Trail:     pts,
		Telemetry: in,
	}
}

// Newest returns the most recent trail point, ok is false for an empty trail.
func (f Frame) Newest() (p trail.Point, ok bool) {
	if len(f.Trail) == 0 {
		return p, false
	}
	return f.Trail[len(f.Trail)-1], true
}

// Renderer writes frames to a Display and skips rows that did not change.
type Renderer struct {
	disp Display
	last []string
}

func NewRenderer(disp Display) *Renderer {
	return &Renderer{disp: disp}
}

// Lines formats a frame into panel rows, each at most width characters.
func Lines(f Frame, width int) []string {
	t := f.Telemetry
	sd := "--"
	if t.SDConnected {
		sd = "OK"
	}
	lines := []string{
		fmt.Sprintf("BAT:%3.0f%%  SD:%s", t.BatPercent, sd),
		fmt.Sprintf("P:%4.0fms L:%4.1f%%", t.Ping, t.PacketLoss),
		fmt.Sprintf("TRIM H:%+d V:%+d", t.HorizTrim, t.VertTrim),
	}
	if p, ok := f.Newest(); ok {
		lines = append(lines, fmt.Sprintf("XY:%d,%d n:%d", p.X, p.Y, len(f.Trail)))
	} else {
		lines = append(lines, "XY:--")
	}
	for i, l := range lines {
		if width > 0 && len(l) > width {
			lines[i] = l[:width]
		}
	}
	return lines
}

// Render prints the frame. Rows outside the display range are dropped.
func (r *Renderer) Render(f Frame) {
	minRow, maxRow := r.disp.GetMinMaxRowNum()
	lines := Lines(f, r.disp.GetCharsPerLine())
	for i, l := range lines {
		row := minRow + i
		if row > maxRow {
			break
		}
		if i < len(r.last) && r.last[i] == l {
			continue
		}
		r.disp.PrintLine(row, strings.TrimSpace(l), false)
	}
	r.last = lines
}

// Reset forgets the printed rows, the next Render prints everything again.
func (r *Renderer) Reset() {
	r.last = nil
}
