package syncer

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wisangg/storysync/internal/database"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/sserror"
	"github.com/wisangg/storysync/pkg/storyapi"
)

type (
	// An Uploader pushes a single story submission to the remote service.
	// It is satisfied by storyapi.Client.
	Uploader interface {
		AddStory(submission storyapi.Submission) error
	}

	// A Coordinator reconciles queued submissions with the remote service.
	// At most one sync pass runs at a time per Coordinator; the guard is
	// local to this instance, so two coordinators over the same store may
	// race to upload the same still-present record. That race is accepted:
	// deletion on success is idempotent, a record already drained by the
	// other side simply is not found anymore.
	Coordinator struct {
		db       database.Client
		uploader Uploader
		online   func() bool
		bus      *Bus
		logger   logrus.FieldLogger

		mu      sync.Mutex
		syncing bool
	}

	// An ItemError records a single submission's upload failure.
	ItemError struct {
		StoryID int    `json:"storyId"`
		Message string `json:"message"`
	}

	// A Result reports the outcome of a sync request. Success is false when
	// the pass could not start (already syncing, offline) or aborted on a
	// systemic fault; a pass that ran to completion is successful even when
	// some items failed.
	Result struct {
		Success     bool        `json:"success"`
		Message     string      `json:"message,omitempty"`
		SyncedCount int         `json:"syncedCount"`
		FailedCount int         `json:"failedCount"`
		Errors      []ItemError `json:"errors,omitempty"`
	}

	// A Status reports the coordinator's current state.
	Status struct {
		Online         bool `json:"isOnline"`
		SyncInProgress bool `json:"syncInProgress"`
	}
)

// NewCoordinator returns a new Coordinator.
func NewCoordinator(db database.Client, uploader Uploader, online func() bool, bus *Bus, logger logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		db:       db,
		uploader: uploader,
		online:   online,
		bus:      bus,
		logger:   logger,
	}
}

// Bus returns the notification bus used by the coordinator.
func (c *Coordinator) Bus() *Bus {
	return c.bus
}

// Status reports whether the device is online and a pass is running.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Online: c.online(), SyncInProgress: c.syncing}
}

// SyncOfflineStories drains every queued submission to the remote service.
//
// Submissions are uploaded strictly sequentially. A submission that fails
// stays queued for a future pass and never aborts the batch; only a fault of
// the machinery itself (such as a store read failure) aborts the pass.
func (c *Coordinator) SyncOfflineStories() Result {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		c.logger.Debug("sync already in progress")
		return Result{Success: false, Message: "sync already in progress"}
	}
	if !c.online() {
		c.mu.Unlock()
		c.logger.Debug("device is offline, cannot sync")
		return Result{Success: false, Message: "device is offline"}
	}
	c.syncing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	c.bus.Notify(EventSyncStarted, nil)

	stories, err := c.db.UnsyncedStories()
	if err != nil {
		failure := sserror.SyncFailure("could not load queued submissions: " + err.Error())
		c.logger.WithError(err).Error("sync failed")
		c.bus.Notify(EventSyncFailed, failure)
		return Result{Success: false, Message: failure.Error()}
	}

	if len(stories) == 0 {
		c.logger.Debug("no stories to sync")
		result := Result{Success: true}
		c.bus.Notify(EventSyncCompleted, result)
		return result
	}

	c.logger.Infof("syncing %d offline stories", len(stories))

	result := Result{Success: true}
	for _, story := range stories {
		if err := c.syncStory(story); err != nil {
			c.logger.WithError(err).Warnf("could not sync story %d", story.ID)
			result.FailedCount++
			result.Errors = append(result.Errors, ItemError{StoryID: story.ID, Message: err.Error()})
			continue
		}

		result.SyncedCount++
		c.bus.Notify(EventStorySynced, story.ID)
	}

	c.logger.Infof("sync completed: %d synced, %d failed", result.SyncedCount, result.FailedCount)
	c.bus.Notify(EventSyncCompleted, result)
	return result
}

// syncStory uploads one submission with the credential captured at enqueue
// time, then removes the local record.
func (c *Coordinator) syncStory(story *model.OfflineStory) error {
	if story.Token == "" {
		return sserror.NotAuthenticated("submission has no captured credential")
	}

	err := c.uploader.AddStory(storyapi.Submission{
		Description: story.Description,
		Photo:       story.Photo,
		PhotoName:   story.PhotoName,
		Lat:         story.Lat,
		Lon:         story.Lon,
		Token:       story.Token,
	})
	if err != nil {
		return sserror.UploadFailed(err.Error())
	}

	return c.db.DeleteOfflineStory(story.ID)
}
