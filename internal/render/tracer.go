package render

import "strconv"

type frame struct {
	start int64
	name  string
}

// Tracer is the controller-side state of one target tracer registration.
type Tracer struct {
	ID    int64
	Query string

	frames  []frame
	exprs   map[int64]string
	arglist bool
	last    string
}

func newTracer(id int64, query string) *Tracer {
	return &Tracer{ID: id, Query: query, exprs: make(map[int64]string)}
}

// Depth returns the number of calls this tracer has open.
func (t *Tracer) Depth() int {
	return len(t.frames)
}

// Expr returns the source of expression id.
func (t *Tracer) Expr(id int64) (string, bool) {
	src, ok := t.exprs[id]
	return src, ok
}

func (t *Tracer) push(start int64, name string) {
	t.frames = append(t.frames, frame{start: start, name: name})
}

func (t *Tracer) pop() (frame, bool) {
	if len(t.frames) == 0 {
		return frame{}, false
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	return f, true
}

// marker identifies the last header printed for a tracer.
func marker(name string, depth int) string {
	return name + ":" + strconv.Itoa(depth)
}
