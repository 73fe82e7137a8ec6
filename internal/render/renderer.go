// Package render turns decoded trace events into indented call trace text.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/calltap/internal/wire"
)

// DefaultPrefix is the indentation for one nesting level.
const DefaultPrefix = "  "

// timePad matches the width of a "15:04:05.000000 " timestamp.
var timePad = strings.Repeat(" ", 16)

// Options controls how events are rendered.
type Options struct {
	Prefix       string
	ShowTime     bool
	ShowDuration bool
	// WatchSlow terminates bare gc heartbeat lines, as slow samples are
	// printed one per line.
	WatchSlow bool
	Location  *time.Location
	Log       *zap.SugaredLogger
}

// DefaultOptions returns the options used by the trace command.
func DefaultOptions() Options {
	return Options{Prefix: DefaultPrefix, ShowDuration: true}
}

// Renderer owns the method and class registries, the tracers and the
// nesting state of one traced process.
type Renderer struct {
	w    io.Writer
	opts Options
	log  *zap.SugaredLogger

	methods map[int64]string
	classes map[int64]string
	tracers map[int64]*Tracer

	nesting     int
	maxNesting  int
	lastNesting int
	last        *Tracer

	printedNewline bool
	gcOpen         bool
	gcStart        int64

	err error
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Renderer{
		w:              w,
		opts:           opts,
		log:            log,
		methods:        make(map[int64]string),
		classes:        make(map[int64]string),
		tracers:        make(map[int64]*Tracer),
		printedNewline: true,
	}
}

// Nesting returns the number of currently open calls across all tracers.
func (r *Renderer) Nesting() int { return r.nesting }

// MaxNesting returns the deepest nesting seen so far.
func (r *Renderer) MaxNesting() int { return r.maxNesting }

// Tracer returns the tracer registered under id.
func (r *Renderer) Tracer(id int64) (*Tracer, bool) {
	t, ok := r.tracers[id]
	return t, ok
}

// Err returns the first write error.
func (r *Renderer) Err() error { return r.err }

// SetWatchSlow switches gc heartbeat lines to one per line.
func (r *Renderer) SetWatchSlow(on bool) { r.opts.WatchSlow = on }

// Newline terminates the current line if one is open.
func (r *Renderer) Newline() {
	if !r.printedNewline {
		r.puts("")
	}
	r.printedNewline = true
}

// Println writes s on a line of its own.
func (r *Renderer) Println(s string) {
	r.Newline()
	r.puts(s)
}

// Render applies one event. Session-level kinds are ignored here.
func (r *Renderer) Render(ev wire.Event) {
	switch ev.Kind {
	case wire.KindDuringGC, wire.KindAttached, wire.KindDetached, wire.KindForked, wire.KindEvaled:
		return
	case wire.KindMethod:
		r.methods[ev.Int(0)] = ev.String(1)
	case wire.KindClass:
		r.classes[ev.Int(0)] = ev.String(1)
	case wire.KindAdd:
		r.add(ev)
	case wire.KindRemove:
		delete(r.tracers, ev.Int(0))
	case wire.KindNewExpr:
		r.newExpr(ev)
	case wire.KindExprValue:
		r.exprValue(ev)
	case wire.KindCall, wire.KindCCall:
		r.call(ev)
	case wire.KindReturn, wire.KindCReturn:
		r.ret(ev)
	case wire.KindSlow, wire.KindCSlow:
		r.slow(ev)
	case wire.KindGCStart:
		r.gcBegin(ev)
	case wire.KindGCEnd:
		r.gcFinish(ev)
	case wire.KindGC:
		r.gcMark(ev)
	default:
		r.log.Debugw("unknown event", "name", ev.Name, "fields", ev.Fields)
		r.Println(fmt.Sprintf("unknown event %s: %v", ev.Name, ev.Fields))
	}
}

// tracer returns the tracer for id, inserting an empty one on first use.
func (r *Renderer) tracer(id int64) *Tracer {
	t, ok := r.tracers[id]
	if !ok {
		t = newTracer(id, "")
		r.tracers[id] = t
	}
	return t
}

func (r *Renderer) add(ev wire.Event) {
	id, query := ev.Int(0), ev.String(1)
	if id == -1 {
		r.log.Warnf("unable to add tracer for %s", query)
		return
	}
	r.tracers[id] = newTracer(id, query)
}

func (r *Renderer) newExpr(ev wire.Event) {
	t := r.tracer(ev.Int(0))
	exprID := ev.Int(1)
	if exprID > -1 {
		t.exprs[exprID] = strings.TrimSpace(ev.String(2))
	}
}

func (r *Renderer) exprValue(ev wire.Event) {
	t, ok := r.tracers[ev.Int(0)]
	if !ok {
		return
	}
	src, ok := t.Expr(ev.Int(1))
	if !ok {
		return
	}
	if t.arglist {
		r.print(", ")
	} else {
		r.print("(")
	}
	r.print(src + "=" + ev.String(2))
	t.arglist = true
}

// displayName renders Class#method or Class.method for singletons.
func (r *Renderer) displayName(methodID int64, singleton bool, classID int64) string {
	var b strings.Builder
	if class, ok := r.classes[classID]; ok {
		b.WriteString(class)
		if singleton {
			b.WriteByte('.')
		} else {
			b.WriteByte('#')
		}
	}
	if method, ok := r.methods[methodID]; ok {
		b.WriteString(method)
	} else {
		b.WriteString("(unknown)")
	}
	return b.String()
}

// call fields: time, tracer, method, singleton, class
func (r *Renderer) call(ev wire.Event) {
	at := ev.Int(0)
	t := r.tracer(ev.Int(1))
	name := r.displayName(ev.Int(2), ev.Bool(3), ev.Int(4))
	t.push(at, name)

	if r.last != nil && r.last.arglist {
		r.print(")")
		r.last.arglist = false
	}
	r.Newline()
	if r.opts.ShowTime {
		r.print(r.timestamp(at))
	}
	r.indent(r.nesting)
	r.print(name)

	r.nesting++
	if r.nesting > r.maxNesting {
		r.maxNesting = r.nesting
	}
	r.lastNesting = r.nesting
	r.last = t
	t.last = marker(name, r.nesting-1)
}

// ret fields: time, tracer
func (r *Renderer) ret(ev wire.Event) {
	at := ev.Int(0)
	t := r.tracer(ev.Int(1))

	if r.nesting > 0 {
		r.nesting--
	}

	if f, ok := t.pop(); ok {
		m := marker(f.name, r.nesting)
		if r.last != nil && r.last.last != m {
			r.last.arglist = false
		}
		if r.last != nil && r.last.arglist {
			r.print(")")
		}

		// a return right after its own header collapses onto that line
		if t != r.last || r.last.last != m {
			r.Newline()
			if r.opts.ShowTime {
				r.print(timePad)
			}
			r.indent(r.nesting)
			r.print(f.name)
		}
		if r.opts.ShowDuration {
			r.print(duration(at - f.start))
		}
		r.Newline()

		if r.nesting == 0 && r.maxNesting > 1 {
			r.puts("")
		}
	}

	t.arglist = false
	r.lastNesting = r.nesting
}

// slow fields: time, duration, nesting, method, singleton, class
func (r *Renderer) slow(ev wire.Event) {
	at, diff := ev.Int(0), ev.Int(1)
	nesting := int(ev.Int(2))
	name := r.displayName(ev.Int(3), ev.Bool(4), ev.Int(5))

	r.Newline()
	if r.nesting > 0 {
		nesting = r.nesting
	}
	if nesting < 0 {
		nesting = 0
	}

	if r.opts.ShowTime {
		r.print(r.timestamp(at))
	}
	r.indent(nesting)
	r.print(name)
	if r.opts.ShowDuration {
		r.print(duration(diff))
	}
	r.puts("")
	if nesting == 0 && r.maxNesting > 1 {
		r.puts("")
	}

	if nesting > r.maxNesting {
		r.maxNesting = nesting
	}
	r.lastNesting = nesting
}

// gcBegin closes any open argument list and starts a garbage_collect line.
// The enclosing call's return is printed on its own line afterwards.
func (r *Renderer) gcBegin(ev wire.Event) {
	r.gcOpen = true
	r.gcStart = ev.Int(0)
	if r.last != nil && r.last.arglist {
		r.print(")")
		r.last.arglist = false
	}
	r.last = nil
	r.Newline()
	if r.opts.ShowTime {
		r.print(r.timestamp(r.gcStart))
	}
	r.indent(r.nesting)
	r.print("garbage_collect")
}

func (r *Renderer) gcFinish(ev wire.Event) {
	if !r.gcOpen {
		return
	}
	if r.opts.ShowDuration {
		r.print(duration(ev.Int(0) - r.gcStart))
	}
	r.gcOpen = false
	r.Newline()
}

func (r *Renderer) gcMark(ev wire.Event) {
	if r.gcOpen {
		return
	}
	r.Newline()
	if r.opts.ShowTime {
		r.print(r.timestamp(ev.Int(0)))
	}
	r.indent(r.lastNesting)
	r.print("garbage_collect")
	if r.opts.WatchSlow {
		r.puts("")
	}
}

func (r *Renderer) indent(depth int) {
	if depth > 0 {
		r.print(strings.Repeat(r.opts.Prefix, depth))
	}
}

// timestamp formats a microsecond epoch time as "15:04:05.000000 ".
func (r *Renderer) timestamp(micros int64) string {
	t := time.UnixMicro(micros).In(r.opts.Location)
	return t.Format("15:04:05.") + fmt.Sprintf("%06d ", t.Nanosecond()/1000)
}

// duration formats elapsed microseconds as fractional seconds.
func duration(micros int64) string {
	return fmt.Sprintf(" <%f>", float64(micros)/1e6)
}

func (r *Renderer) print(s string) {
	r.printedNewline = false
	r.write(s)
}

func (r *Renderer) puts(s string) {
	r.printedNewline = true
	r.write(s + "\n")
}

func (r *Renderer) write(s string) {
	if r.err != nil {
		return
	}
	if _, err := io.WriteString(r.w, s); err != nil {
		r.err = err
	}
}
