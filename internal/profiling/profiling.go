package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Lightweight per-frame CPU profiler for tick-level insights.

// Profiler accumulates named durations for the current frame and keeps a
// short history of finished frames for averages.
type Profiler struct {
	mu          sync.Mutex
	frameTotals map[string]time.Duration
	history     []map[string]time.Duration
	next        int
	frames      uint64
}

// New creates a profiler that averages over the last window frames.
func New(window int) *Profiler {
	if window < 1 {
		window = 1
	}
	return &Profiler{
		frameTotals: make(map[string]time.Duration),
		history:     make([]map[string]time.Duration, window),
	}
}

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer p.Track("streaming.Update")()
func (p *Profiler) Track(name string) func() {
	start := time.Now()
	return func() {
		p.Add(name, time.Since(start))
	}
}

// Add records d under name for the current frame.
func (p *Profiler) Add(name string, d time.Duration) {
	p.mu.Lock()
	p.frameTotals[name] += d
	p.mu.Unlock()
}

// ResetFrame closes the current frame into the history and clears the
// per-frame totals. Call at the start of each frame.
func (p *Profiler) ResetFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frameTotals) > 0 || p.frames > 0 {
		done := make(map[string]time.Duration, len(p.frameTotals))
		for k, v := range p.frameTotals {
			done[k] = v
			delete(p.frameTotals, k)
		}
		p.history[p.next] = done
		p.next = (p.next + 1) % len(p.history)
	}
	p.frames++
}

// Snapshot returns a copy of current per-frame totals.
func (p *Profiler) Snapshot() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]time.Duration, len(p.frameTotals))
	for k, v := range p.frameTotals {
		out[k] = v
	}
	return out
}

// Averages returns the mean duration per name over the finished frames in
// the history window.
func (p *Profiler) Averages() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	sums := make(map[string]time.Duration)
	n := 0
	for _, frame := range p.history {
		if frame == nil {
			continue
		}
		n++
		for k, v := range frame {
			sums[k] += v
		}
	}
	if n == 0 {
		return sums
	}
	for k, v := range sums {
		sums[k] = v / time.Duration(n)
	}
	return sums
}

// AveragesTopN formats the top N mean durations over the history window.
func (p *Profiler) AveragesTopN(n int) string {
	return formatTop(p.Averages(), n)
}

// TopN formats top N durations from the current frame totals.
// Example: "streaming.Update:4.2ms, streaming.drain:2.1ms"
func (p *Profiler) TopN(n int) string {
	return formatTop(p.Snapshot(), n)
}

func formatTop(totals map[string]time.Duration, n int) string {
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(totals))
	for k, v := range totals {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur != list[j].dur {
			return list[i].dur > list[j].dur
		}
		return list[i].name < list[j].name
	})
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ms := float64(list[i].dur.Microseconds()) / 1000.0
		parts = append(parts, list[i].name+":"+formatMs(ms))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops ".0".
func formatMs(ms float64) string {
	s := strconv.FormatFloat(ms, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	return s + "ms"
}
