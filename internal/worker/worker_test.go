package worker_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/syncer"
	"github.com/wisangg/storysync/internal/worker"
	"github.com/wisangg/storysync/pkg/storyapi"
)

type uploaderFunc func(submission storyapi.Submission) error

func (f uploaderFunc) AddStory(submission storyapi.Submission) error {
	return f(submission)
}

func TestWorkerDrainsOnRequest(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	require.NoError(t, db.AddOfflineStory(&model.OfflineStory{Description: "queued", Token: "abc"}))

	uploader := uploaderFunc(func(storyapi.Submission) error { return nil })

	messages := make(chan worker.Message, 8)
	foreground := syncer.NewBus(testLogger())
	foreground.Register(func(event string, data any) {
		if message, ok := data.(worker.Message); ok {
			messages <- message
		}
	})

	w := worker.New(db, uploader, func() bool { return true }, foreground, testLogger())
	w.Start()
	defer w.Stop()

	w.RequestSync(worker.SyncTag)

	select {
	case message := <-messages:
		assert.Equal(t, worker.MessageStorySynced, message.Type)
		assert.Equal(t, 1, message.StoryID)
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}

	assert.Eventually(t, func() bool {
		stories, err := db.AllOfflineStories()
		require.NoError(t, err)
		return len(stories) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerIgnoresUnknownTag(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	uploader := uploaderFunc(func(storyapi.Submission) error {
		t.Error("an unknown tag must not trigger a drain")
		return nil
	})

	w := worker.New(db, uploader, func() bool { return true }, syncer.NewBus(testLogger()), testLogger())
	w.Start()
	time.Sleep(50 * time.Millisecond) // let the startup drain finish on the empty queue

	require.NoError(t, db.AddOfflineStory(&model.OfflineStory{Description: "queued", Token: "abc"}))

	w.RequestSync("sync-somethingelse")
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	stories, err := db.AllOfflineStories()
	require.NoError(t, err)
	assert.Len(t, stories, 1)
}

func TestWorkerOfflineLeavesQueueIntact(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	require.NoError(t, db.AddOfflineStory(&model.OfflineStory{Description: "queued", Token: "abc"}))

	uploader := uploaderFunc(func(storyapi.Submission) error {
		t.Error("no upload must be attempted while offline")
		return nil
	})

	w := worker.New(db, uploader, func() bool { return false }, syncer.NewBus(testLogger()), testLogger())
	w.Start()

	w.RequestSync(worker.SyncTag)
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	stories, err := db.AllOfflineStories()
	require.NoError(t, err)
	assert.Len(t, stories, 1)
}

func TestWorkerDrainsAtStartupWhenOnline(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	// Left over from a previous run.
	require.NoError(t, db.AddOfflineStory(&model.OfflineStory{Description: "queued", Token: "abc"}))

	uploader := uploaderFunc(func(storyapi.Submission) error { return nil })
	w := worker.New(db, uploader, func() bool { return true }, syncer.NewBus(testLogger()), testLogger())

	// No explicit request: starting while online is enough.
	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool {
		stories, err := db.AllOfflineStories()
		require.NoError(t, err)
		return len(stories) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerStopWithoutStart(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	w := worker.New(db, uploaderFunc(func(storyapi.Submission) error { return nil }),
		func() bool { return true }, syncer.NewBus(testLogger()), testLogger())

	w.Stop() // must return, not block on a loop that never ran
}

func TestWorkerCoalescesWakeups(t *testing.T) {
	db, cleanup := setup(t)
	defer cleanup()

	// Arm repeatedly before the loop runs: the requests coalesce instead of
	// blocking the caller.
	w := worker.New(db, uploaderFunc(func(storyapi.Submission) error { return nil }),
		func() bool { return true }, syncer.NewBus(testLogger()), testLogger())

	for i := 0; i < 10; i++ {
		w.RequestSync(worker.SyncTag)
	}

	w.Start()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setup(t *testing.T) (database.Client, func()) {
	tmpfile, err := os.CreateTemp("", "storysync.*.db")
	if err != nil {
		panic(err)
	}
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err := database.StormOpen(filename)
	if err != nil {
		panic(err)
	}

	return db, func() {
		db.Close()
		os.RemoveAll(filename)
	}
}
