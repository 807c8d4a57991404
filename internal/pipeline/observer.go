package pipeline

import "sync"

// Observer receives run progress. Calls arrive from worker goroutines in
// file completion order but never concurrently with each other.
type Observer interface {
	// Progress reports the percentage of main files finished (successfully or
	// not). Values never decrease and the last one of a run is 100.
	Progress(percent int)
	// Log delivers one human-readable line.
	Log(msg string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ProgressFunc func(percent int)
	LogFunc      func(msg string)
}

func (o ObserverFuncs) Progress(percent int) {
	if o.ProgressFunc != nil {
		o.ProgressFunc(percent)
	}
}

func (o ObserverFuncs) Log(msg string) {
	if o.LogFunc != nil {
		o.LogFunc(msg)
	}
}

// progress serializes observer calls and derives the percentage from the
// number of finished files.
type progress struct {
	mu    sync.Mutex
	obs   Observer
	total int
	done  int
	last  int
}

func newProgress(obs Observer, total int) *progress {
	if obs == nil {
		obs = ObserverFuncs{}
	}
	return &progress{obs: obs, total: total}
}

// finish records one finished file and emits its log line followed by the
// new percentage.
func (p *progress) finish(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	pct := 100
	if p.total > 0 {
		pct = p.done * 100 / p.total
	}
	if pct < p.last {
		pct = p.last
	}
	p.last = pct

	p.obs.Log(msg)
	p.obs.Progress(pct)
}
