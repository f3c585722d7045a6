package lane

import (
	"time"

	"github.com/james-see/patternsync/pkg/converter"
)

// BufferChanged records the text of an open document and schedules a
// debounced refresh of lanes defined in open documents. Each call restarts
// the delay, so only the last change in a burst triggers a pass.
func (r *Reconciler) BufferChanged(file, text string) {
	if r.source == nil {
		return
	}
	r.source.Update(file, text)
	r.schedule()
}

// BufferClosed forgets an open document
func (r *Reconciler) BufferClosed(file string) {
	if r.source == nil {
		return
	}
	r.source.Close(file)
}

// Pending reports whether a debounced buffer refresh is waiting to run
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// CancelPending drops a scheduled buffer refresh
func (r *Reconciler) CancelPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}

func (r *Reconciler) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()

	gen := r.pendingGen
	r.pending = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		if gen != r.pendingGen {
			// Superseded after the timer fired but before it got the lock
			r.mu.Unlock()
			return
		}
		r.pending = nil
		r.pendingGen++
		r.mu.Unlock()
		r.RefreshBuffers()
	})
}

func (r *Reconciler) cancelLocked() {
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	r.pendingGen++
}

// RefreshBuffers re-derives source-authoritative lanes whose definitions sit
// in open documents. It is the fast path ahead of the next runtime snapshot
// and respects the same local-modification gate. Definitions that do not
// parse, which is normal mid-typing, leave the lane untouched.
func (r *Reconciler) RefreshBuffers() RefreshReport {
	var rep RefreshReport
	if r.source == nil {
		return rep
	}

	r.mu.Lock()
	for _, name := range r.order {
		l := r.lanes[name]
		if l.SourceLocation == nil {
			continue
		}
		text, open := r.source.Text(l.SourceLocation.File)
		if !open {
			continue
		}
		if l.LocallyModified {
			rep.Skipped = append(rep.Skipped, name)
			continue
		}

		site, err := r.locator.Locate(text, *l.SourceLocation, name)
		if err != nil {
			rep.fail(name, err)
			continue
		}
		l.SourceLocation.Line = site.Line

		if site.Text == converter.Encode(l.Grid) {
			rep.Unchanged = append(rep.Unchanged, name)
			continue
		}
		g, err := converter.Decode(site.Text)
		if err != nil {
			rep.fail(name, err)
			continue
		}
		g.BeatsPerBar = l.Grid.BeatsPerBar
		if g.Equal(l.Grid) {
			rep.Unchanged = append(rep.Unchanged, name)
			continue
		}
		l.Grid = g
		rep.Updated = append(rep.Updated, name)
	}
	r.mu.Unlock()

	r.log.Debug("buffer refresh", "updated", len(rep.Updated), "errors", len(rep.Errors))
	r.notify(Change{Reason: "buffers", Report: &rep})
	return rep
}
