// Package watchdog tracks liveness of the long-running loops: the
// gateway event pump, the enforcement dispatcher, and the maintenance
// sweeper. A loop that stops heartbeating gets flagged and logged, which
// is how a wedged goroutine surfaces before the guilds notice.
package watchdog

import (
	"sync/atomic"
	"time"

	"go-theoprotect/internal/logging"
)

type component struct {
	name          string
	lastHeartbeat int64 // unix nano
	healthy       uint32
	threshold     time.Duration
}

type Watchdog struct {
	components    map[string]*component
	checkInterval time.Duration
	running       uint32
}

func New(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:    make(map[string]*component),
		checkInterval: checkInterval,
	}
}

// Register adds a component. All registration happens before Start; the
// map is read-only afterwards.
func (w *Watchdog) Register(name string, threshold time.Duration) {
	w.components[name] = &component{
		name:      name,
		healthy:   1,
		threshold: threshold,
	}
}

func (w *Watchdog) Heartbeat(name string) {
	if c, ok := w.components[name]; ok {
		atomic.StoreInt64(&c.lastHeartbeat, time.Now().UnixNano())
		atomic.StoreUint32(&c.healthy, 1)
	}
}

func (w *Watchdog) Start() {
	atomic.StoreUint32(&w.running, 1)
	go w.loop()
}

func (w *Watchdog) Stop() {
	atomic.StoreUint32(&w.running, 0)
}

func (w *Watchdog) loop() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for atomic.LoadUint32(&w.running) == 1 {
		<-ticker.C
		w.check()
	}
}

func (w *Watchdog) check() {
	now := time.Now().UnixNano()
	for name, c := range w.components {
		last := atomic.LoadInt64(&c.lastHeartbeat)
		if last == 0 {
			continue
		}
		if elapsed := time.Duration(now - last); elapsed > c.threshold {
			atomic.StoreUint32(&c.healthy, 0)
			logging.Error("watchdog: %s silent for %v", name, elapsed)
		}
	}
}

func (w *Watchdog) Healthy(name string) bool {
	if c, ok := w.components[name]; ok {
		return atomic.LoadUint32(&c.healthy) == 1
	}
	return false
}

// Status reports every component's health, for the stats surface.
func (w *Watchdog) Status() map[string]bool {
	out := make(map[string]bool, len(w.components))
	for name, c := range w.components {
		out[name] = atomic.LoadUint32(&c.healthy) == 1
	}
	return out
}
