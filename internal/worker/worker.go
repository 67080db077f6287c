package worker

import (
	"github.com/sirupsen/logrus"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/syncer"
)

// SyncTag is the deferred-registration token armed when a submission is
// queued offline.
const SyncTag = "sync-stories"

// MessageStorySynced is broadcast to the foreground after a successful
// background upload.
const MessageStorySynced = "STORY_SYNCED"

// A Message is posted to foreground listeners by the background context.
type Message struct {
	Type    string `json:"type"`
	StoryID int    `json:"storyId"`
}

// A Worker is the background execution context. It owns its own Coordinator
// over the shared store and drains the queue when woken, independently of
// any foreground sync pass.
//
// There is deliberately no lock shared with the foreground coordinator: both
// sides may observe and attempt the same record, and the storage layer's
// idempotent delete-on-success is the only protection. This mirrors the
// accepted race of the design.
type Worker struct {
	coordinator *syncer.Coordinator
	foreground  *syncer.Bus
	online      func() bool
	logger      logrus.FieldLogger

	started bool
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// New returns a Worker with its own coordinator over db. Events of the
// background drain are forwarded to the foreground bus as Messages.
func New(db database.Client, uploader syncer.Uploader, online func() bool, foreground *syncer.Bus, logger logrus.FieldLogger) *Worker {
	background := syncer.NewBus(logger)

	w := &Worker{
		coordinator: syncer.NewCoordinator(db, uploader, online, background, logger),
		foreground:  foreground,
		online:      online,
		logger:      logger,
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	background.Register(func(event string, data any) {
		if event != syncer.EventStorySynced {
			return
		}
		id, ok := data.(int)
		if !ok {
			return
		}
		w.foreground.Notify(syncer.EventStorySynced, Message{Type: MessageStorySynced, StoryID: id})
	})

	return w
}

// RequestSync arms a deferred wake-up for the given tag. Arming while
// already armed coalesces; delivery is best-effort and at-least-once once
// the worker runs.
func (w *Worker) RequestSync(tag string) {
	if tag != SyncTag {
		w.logger.Warnf("ignoring unknown sync tag: %s", tag)
		return
	}

	select {
	case w.wake <- struct{}{}:
	default: // already armed
	}
}

// Start runs the drain loop until Stop is called. Submissions left over from
// a previous run are drained right away when the device is already online,
// without waiting for a connectivity transition.
func (w *Worker) Start() {
	w.started = true
	go w.loop()

	if w.online() {
		w.RequestSync(SyncTag)
	}
}

// Stop terminates the drain loop. Stopping a never-started Worker is a no-op.
func (w *Worker) Stop() {
	if !w.started {
		return
	}
	close(w.stop)
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *Worker) drain() {
	w.logger.Debug("background sync woken")
	result := w.coordinator.SyncOfflineStories()
	if !result.Success {
		w.logger.Debugf("background sync did not run: %s", result.Message)
	}
}
