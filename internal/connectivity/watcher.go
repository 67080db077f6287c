package connectivity

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"
	"github.com/wisangg/storysync/internal/syncer"
)

// A Prober reports whether the remote service is currently reachable.
type Prober func() bool

// HTTPProber returns a Prober issuing a HEAD request against the endpoint.
// Any response, even an error status, means the network path is up.
func HTTPProber(endpoint string, timeout time.Duration) Prober {
	client := &http.Client{Timeout: timeout}

	return func() bool {
		req, err := http.NewRequest(http.MethodHead, endpoint, nil)
		if err != nil {
			return false
		}
		req.Close = true

		res, err := client.Do(req)
		if err != nil {
			return false
		}
		res.Body.Close()
		return true
	}
}

// A Watcher polls a Prober and reports online/offline transitions.
// Transitions are debounced so a flapping link settles before anything is
// notified; the last observed state wins.
type Watcher struct {
	probe     Prober
	interval  time.Duration
	bus       *syncer.Bus
	logger    logrus.FieldLogger
	debounced func(func())

	online int32

	mu          sync.Mutex
	transitions []func(online bool)

	stop chan struct{}
	done chan struct{}
}

// NewWatcher returns a new Watcher polling every interval and settling
// transitions over the settle duration.
func NewWatcher(probe Prober, interval, settle time.Duration, bus *syncer.Bus, logger logrus.FieldLogger) *Watcher {
	return &Watcher{
		probe:     probe,
		interval:  interval,
		bus:       bus,
		logger:    logger,
		debounced: debounce.New(settle),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// OnTransition registers a callback invoked after each settled transition.
func (w *Watcher) OnTransition(fn func(online bool)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transitions = append(w.transitions, fn)
}

// Online returns the last observed connectivity state.
func (w *Watcher) Online() bool {
	return atomic.LoadInt32(&w.online) == 1
}

// Start probes once to set the baseline then polls in the background.
func (w *Watcher) Start() {
	w.setOnline(w.probe())
	go w.loop()
}

// Stop terminates the polling loop.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.observe(w.probe())
		}
	}
}

func (w *Watcher) observe(online bool) {
	if online == w.Online() {
		return
	}
	w.setOnline(online)

	w.debounced(func() {
		current := w.Online()
		if current {
			w.logger.Info("device is online")
			w.bus.Notify(syncer.EventOnline, nil)
		} else {
			w.logger.Info("device is offline")
			w.bus.Notify(syncer.EventOffline, nil)
		}

		w.mu.Lock()
		transitions := make([]func(bool), len(w.transitions))
		copy(transitions, w.transitions)
		w.mu.Unlock()

		for _, fn := range transitions {
			fn(current)
		}
	})
}

func (w *Watcher) setOnline(online bool) {
	if online {
		atomic.StoreInt32(&w.online, 1)
		return
	}
	atomic.StoreInt32(&w.online, 0)
}
