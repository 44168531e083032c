package station

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aluedtke7/stick_trail_display/display"
	"github.com/aluedtke7/stick_trail_display/trail"
)

type info struct {
	Frame display.Frame `json:"frame"`
	Ticks uint64        `json:"ticks"`
	Stats trail.Stats   `json:"stats"`
}

// Handler serves the current frame as plain text on "/" and as JSON on "/info".
func (c *Controller) Handler() http.Handler {
	mux := http.NewServeMux()

	// browser page plain text
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		f, ticks := c.Latest()
		_, _ = fmt.Fprintf(w, "Ground Station Display          tick %d\n"+
			"---------------------------------------\n", ticks)
		for _, l := range display.Lines(f, 0) {
			_, _ = fmt.Fprintln(w, l)
		}
		_, _ = fmt.Fprintf(w, "Display is %s\n", f.StateName)
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f, ticks := c.Latest()
		inf := info{Frame: f, Ticks: ticks, Stats: c.Stats()}
		j, err := json.MarshalIndent(inf, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(j)
	})
	return mux
}
