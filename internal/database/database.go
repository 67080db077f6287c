package database

import (
	"github.com/wisangg/storysync/internal/model"
)

type (
	// A Client can interact with the durable local store.
	Client interface {
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// IsAlreadyExists returns true if err is a duplicate key error.
		IsAlreadyExists(err error) bool
		// ClearAll wipes both collections. Used for testing/reset.
		ClearAll() error
		// Stats counts both collections and the unsynced subset.
		Stats() (Stats, error)

		FavoriteInteraction
		OfflineStoryInteraction
	}

	// A FavoriteInteraction defines all the methods used to interact with favorite records.
	FavoriteInteraction interface {
		// AddFavorite inserts the given story copy, stamping FavoritedAt.
		// It fails when a record with the same id is already present.
		AddFavorite(favorite *model.Favorite) error
		// RemoveFavorite deletes the favorite. Removing an absent id is not an error.
		RemoveFavorite(id string) error
		// IsFavorite returns true if the given story id has been favorited.
		IsFavorite(id string) (bool, error)
		// AllFavorites returns every favorite record.
		AllFavorites() ([]*model.Favorite, error)
		// SearchFavorites returns the favorites whose name or description
		// contains the query (case-insensitive).
		SearchFavorites(query string) ([]*model.Favorite, error)
		// SortFavorites returns all favorites ordered by the given field
		// (createdAt, favoritedAt or name) and order (asc or desc).
		SortFavorites(field, order string) ([]*model.Favorite, error)
	}

	// An OfflineStoryInteraction defines all the methods used to interact with queued submissions.
	OfflineStoryInteraction interface {
		// AddOfflineStory queues the submission, assigning the next sequence
		// number and stamping CreatedAt.
		AddOfflineStory(story *model.OfflineStory) error
		// AllOfflineStories returns every queued submission.
		AllOfflineStories() ([]*model.OfflineStory, error)
		// UnsyncedStories returns the submissions still waiting for upload.
		UnsyncedStories() ([]*model.OfflineStory, error)
		// MarkStorySynced flags the submission as synced. Absent id is a no-op.
		MarkStorySynced(id int) error
		// DeleteOfflineStory deletes the submission. Absent id is not an error.
		DeleteOfflineStory(id int) error
		// ClearSyncedStories bulk-deletes any record already flagged as synced.
		ClearSyncedStories() error
	}

	// Stats regroups the counters derived from both collections.
	Stats struct {
		FavoritesCount      int `json:"favoritesCount"`
		OfflineStoriesCount int `json:"offlineStoriesCount"`
		UnsyncedCount       int `json:"unsyncedStoriesCount"`
	}
)
