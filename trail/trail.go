// Package trail keeps the stick position history shown as a scatter trail on the
// ground station display and decides when the display may be switched off.
package trail

const (
	BufferSize          = 32    // number of plot points kept
	MaxValueDelta       = 10    // raw input units, larger moves append a new point
	ForceAppendInterval = 5000  // ms a merged tail may be held before a point is forced
	TurnOffTime         = 30000 // ms without stick motion until the display may go off
	PlotWidth           = 64    // horizontal plot coordinate space
	PlotHeight          = 32    // vertical plot coordinate space
)

// State is the display activity derived from stick motion.
type State int

const (
	Active State = iota
	Idle
)

func (s State) String() string {
	if s == Idle {
		return "idle"
	}
	return "active"
}

// Point is one plot coordinate, X from the horizontal axis and Y from the vertical one.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Input holds the readings of one display refresh tick.
type Input struct {
	Vert        int     `json:"vert"`
	Horiz       int     `json:"horiz"`
	HorizMin    int     `json:"horiz_min"`
	HorizMax    int     `json:"horiz_max"`
	VertMin     int     `json:"vert_min"`
	VertMax     int     `json:"vert_max"`
	HorizTrim   int     `json:"horiz_trim"`
	VertTrim    int     `json:"vert_trim"`
	BatPercent  float32 `json:"bat_percent"`
	Ping        float32 `json:"ping"`
	PacketLoss  float32 `json:"packet_loss"`
	SDConnected bool    `json:"sd_connected"`
}

// Config tunes the tracker, zero fields use the package defaults.
type Config struct {
	MaxValueDelta       int
	ForceAppendInterval uint32
	TurnOffTime         uint32
	PlotWidth           int
	PlotHeight          int
}

func DefaultConfig() Config {
	return Config{
		MaxValueDelta:       MaxValueDelta,
		ForceAppendInterval: ForceAppendInterval,
		TurnOffTime:         TurnOffTime,
		PlotWidth:           PlotWidth,
		PlotHeight:          PlotHeight,
	}
}

// normalize replaces unusable values with defaults. The forced append interval
// must stay below the turn off time.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxValueDelta <= 0 {
		c.MaxValueDelta = def.MaxValueDelta
	}
	if c.TurnOffTime == 0 {
		c.TurnOffTime = def.TurnOffTime
	}
	if c.ForceAppendInterval == 0 || c.ForceAppendInterval >= c.TurnOffTime {
		if def.ForceAppendInterval < c.TurnOffTime {
			c.ForceAppendInterval = def.ForceAppendInterval
		} else {
			c.ForceAppendInterval = c.TurnOffTime / 2
		}
	}
	if c.PlotWidth < 1 {
		c.PlotWidth = def.PlotWidth
	}
	if c.PlotHeight < 1 {
		c.PlotHeight = def.PlotHeight
	}
	return c
}

// Stats exposes the bookkeeping fields, mostly for the status page.
type Stats struct {
	Head             int    `json:"head"`
	Len              int    `json:"len"`
	Appended         uint64 `json:"appended"`
	Forced           uint64 `json:"forced"`
	Merged           uint64 `json:"merged"`
	LastVert         int    `json:"last_vert"`
	LastHoriz        int    `json:"last_horiz"`
	MergeTailTime    uint32 `json:"merge_tail_time"`
	LastMotionMillis uint32 `json:"last_motion_millis"`
	LastUpdateMillis uint32 `json:"last_update_millis"`
}

// Tracker is not safe for concurrent use, Update is expected from one control loop.
type Tracker struct {
	cfg Config

	plotX [BufferSize]int
	plotY [BufferSize]int
	head  int
	count int

	lastVert         int
	lastHoriz        int
	mergeTailTime    uint32
	lastMotionMillis uint32
	lastUpdateMillis uint32
	state            State

	appended uint64
	forced   uint64
	merged   uint64
}

func New(cfg Config) *Tracker {
	t := &Tracker{cfg: cfg.normalize()}
	t.Init()
	return t
}

// Init resets the buffer, the last sample and all timestamps.
func (t *Tracker) Init() {
	t.plotX = [BufferSize]int{}
	t.plotY = [BufferSize]int{}
	t.head = 0
	t.count = 0
	t.lastVert = 0
	t.lastHoriz = 0
	t.mergeTailTime = 0
	t.lastMotionMillis = 0
	t.lastUpdateMillis = 0
	t.state = Active
	t.appended = 0
	t.forced = 0
	t.merged = 0
}

// Update ingests one sample. The reading is appended to the trail when it moved
// more than MaxValueDelta on either axis since the last appended point, otherwise
// it replaces the newest point. A tail held longer than ForceAppendInterval gets
// a fresh point anyway, without counting as motion for the idle timer.
func (t *Tracker) Update(nowMillis uint32, in Input) State {
	p := Point{
		X: Scale(in.Horiz, in.HorizMin, in.HorizMax, t.cfg.PlotWidth),
		Y: Scale(in.Vert, in.VertMin, in.VertMax, t.cfg.PlotHeight),
	}

	motion := t.count == 0 || t.moved(in)
	switch {
	case motion:
		t.append(p, in, nowMillis)
		t.lastMotionMillis = nowMillis
		t.appended++
	case nowMillis-t.mergeTailTime >= t.cfg.ForceAppendInterval:
		t.append(p, in, nowMillis)
		t.forced++
	default:
		last := t.newest()
		t.plotX[last] = p.X
		t.plotY[last] = p.Y
		t.merged++
	}

	t.lastUpdateMillis = nowMillis
	// Idle is only left through motion, the elapsed time shrinks again when
	// the millisecond clock wraps.
	switch {
	case motion:
		t.state = Active
	case t.state == Idle:
	case nowMillis-t.lastMotionMillis >= t.cfg.TurnOffTime:
		t.state = Idle
	}
	return t.state
}

func (t *Tracker) moved(in Input) bool {
	return abs(in.Vert-t.lastVert) > t.cfg.MaxValueDelta ||
		abs(in.Horiz-t.lastHoriz) > t.cfg.MaxValueDelta
}

func (t *Tracker) append(p Point, in Input, nowMillis uint32) {
	t.plotX[t.head] = p.X
	t.plotY[t.head] = p.Y
	t.head = (t.head + 1) % BufferSize
	if t.count < BufferSize {
		t.count++
	}
	t.lastVert = in.Vert
	t.lastHoriz = in.Horiz
	t.mergeTailTime = nowMillis
}

func (t *Tracker) newest() int {
	return (t.head + BufferSize - 1) % BufferSize
}

// Trail returns the stored points from oldest to newest.
func (t *Tracker) Trail() []Point {
	pts := make([]Point, 0, t.count)
	start := (t.head + BufferSize - t.count) % BufferSize
	for i := 0; i < t.count; i++ {
		idx := (start + i) % BufferSize
		pts = append(pts, Point{X: t.plotX[idx], Y: t.plotY[idx]})
	}
	return pts
}

func (t *Tracker) Head() int { return t.head }

func (t *Tracker) Len() int { return t.count }

func (t *Tracker) State() State { return t.state }

func (t *Tracker) Config() Config { return t.cfg }

func (t *Tracker) Stats() Stats {
	return Stats{
		Head:             t.head,
		Len:              t.count,
		Appended:         t.appended,
		Forced:           t.forced,
		Merged:           t.merged,
		LastVert:         t.lastVert,
		LastHoriz:        t.lastHoriz,
		MergeTailTime:    t.mergeTailTime,
		LastMotionMillis: t.lastMotionMillis,
		LastUpdateMillis: t.lastUpdateMillis,
	}
}

// Scale maps val from [lo,hi] onto [0,size) and saturates at the edges.
// A degenerate range (lo >= hi) maps to the center of the axis.
func Scale(val, lo, hi, size int) int {
	if size < 1 {
		return 0
	}
	if lo >= hi {
		return (size - 1) / 2
	}
	if val <= lo {
		return 0
	}
	if val >= hi {
		return size - 1
	}
	return int(int64(val-lo) * int64(size-1) / int64(hi-lo))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
