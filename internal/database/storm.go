package database

import (
	"sort"
	"strings"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/pkg/errors"
	"github.com/wisangg/storysync/internal/model"
	"github.com/wisangg/storysync/internal/sserror"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
// It is idempotent: collections and their indexes are created only when missing.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return sserror.StorageUnavailable("could not open database: " + err.Error())
	}
	defer db.Close()

	if err := db.Init(&model.Favorite{}); err != nil {
		return errors.Wrap(err, "could not init favorites indexes")
	}

	err = db.Init(&model.OfflineStory{})
	return errors.Wrap(err, "could not init offline-stories indexes")
}

// StormReIndex reindexes Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return sserror.StorageUnavailable("could not open database: " + err.Error())
	}
	defer db.Close()

	if err := db.ReIndex(&model.Favorite{}); err != nil {
		return errors.Wrap(err, "could not reindex favorites")
	}

	err = db.ReIndex(&model.OfflineStory{})
	return errors.Wrap(err, "could not reindex offline-stories")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, sserror.StorageUnavailable("could not open database: " + err.Error())
	}

	if err := db.Init(&model.Favorite{}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not init favorites indexes")
	}
	if err := db.Init(&model.OfflineStory{}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not init offline-stories indexes")
	}

	return &strm{
		db: db,
	}, nil
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// IsAlreadyExists returns true if err is a duplicate key error.
func (c *strm) IsAlreadyExists(err error) bool {
	return errors.Cause(err) == storm.ErrAlreadyExists || sserror.Tag(err) == sserror.TagDuplicateKey
}

// AddFavorite inserts the given story copy with FavoritedAt set to now.
func (c *strm) AddFavorite(favorite *model.Favorite) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var existing model.Favorite
	err = tx.One("ID", favorite.ID, &existing)
	if err == nil {
		return sserror.DuplicateKey("story already favorited: " + favorite.ID)
	}
	if errors.Cause(err) != storm.ErrNotFound {
		return errors.Wrap(err, "could not check favorite")
	}

	favorite.FavoritedAt = time.Now().UTC()
	if err := tx.Save(favorite); err != nil {
		return errors.Wrap(err, "could not save favorite")
	}

	return errors.Wrap(tx.Commit(), "could not commit favorite")
}

// RemoveFavorite deletes the favorite for the given story id.
func (c *strm) RemoveFavorite(id string) error {
	err := c.db.DeleteStruct(&model.Favorite{ID: id})
	if errors.Cause(err) == storm.ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "could not remove favorite")
}

// IsFavorite returns true if the given story id has been favorited.
func (c *strm) IsFavorite(id string) (bool, error) {
	var favorite model.Favorite
	err := c.db.One("ID", id, &favorite)
	if errors.Cause(err) == storm.ErrNotFound {
		return false, nil
	}
	return err == nil, errors.Wrap(err, "could not check favorite")
}

// AllFavorites returns every favorite record.
func (c *strm) AllFavorites() ([]*model.Favorite, error) {
	favorites := make([]*model.Favorite, 0)
	err := c.db.All(&favorites)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find favorites")
	}
	return favorites, nil
}

// SearchFavorites returns the favorites whose name or description contains the query.
func (c *strm) SearchFavorites(query string) ([]*model.Favorite, error) {
	favorites, err := c.AllFavorites()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	matches := make([]*model.Favorite, 0, len(favorites))
	for _, favorite := range favorites {
		if strings.Contains(strings.ToLower(favorite.Name), query) ||
			strings.Contains(strings.ToLower(favorite.Description), query) {
			matches = append(matches, favorite)
		}
	}
	return matches, nil
}

// SortFavorites returns all favorites ordered by the given field and order.
// String fields are compared case-insensitively, timestamps numerically.
func (c *strm) SortFavorites(field, order string) ([]*model.Favorite, error) {
	favorites, err := c.AllFavorites()
	if err != nil {
		return nil, err
	}

	var less func(a, b *model.Favorite) bool
	switch field {
	case "createdAt":
		less = func(a, b *model.Favorite) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "favoritedAt":
		less = func(a, b *model.Favorite) bool { return a.FavoritedAt.Before(b.FavoritedAt) }
	case "name":
		less = func(a, b *model.Favorite) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	default:
		return nil, errors.Errorf("unsupported sort field: %s", field)
	}

	sort.Slice(favorites, func(i, j int) bool {
		if order == "asc" {
			return less(favorites[i], favorites[j])
		}
		return less(favorites[j], favorites[i])
	})
	return favorites, nil
}

// AddOfflineStory queues the submission with the next sequence number.
func (c *strm) AddOfflineStory(story *model.OfflineStory) error {
	story.ID = 0 // let storm assign the next sequence number
	story.CreatedAt = time.Now().UTC()
	story.Synced = false
	story.SyncedAt = nil

	return errors.Wrap(c.db.Save(story), "could not save offline story")
}

// AllOfflineStories returns every queued submission.
func (c *strm) AllOfflineStories() ([]*model.OfflineStory, error) {
	stories := make([]*model.OfflineStory, 0)
	err := c.db.All(&stories)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find offline stories")
	}
	return stories, nil
}

// UnsyncedStories returns the submissions still waiting for upload.
func (c *strm) UnsyncedStories() ([]*model.OfflineStory, error) {
	stories := make([]*model.OfflineStory, 0)
	err := c.db.Select(q.Eq("Synced", false)).OrderBy("CreatedAt").Find(&stories)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find unsynced stories")
	}
	return stories, nil
}

// MarkStorySynced flags the submission as synced and stamps SyncedAt.
func (c *strm) MarkStorySynced(id int) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var story model.OfflineStory
	err = tx.One("ID", id, &story)
	if errors.Cause(err) == storm.ErrNotFound {
		return nil // already deleted
	}
	if err != nil {
		return errors.Wrap(err, "could not find offline story")
	}

	t := time.Now().UTC()
	story.Synced = true
	story.SyncedAt = &t
	if err := tx.Save(&story); err != nil {
		return errors.Wrap(err, "could not update offline story")
	}

	return errors.Wrap(tx.Commit(), "could not commit offline story")
}

// DeleteOfflineStory deletes the submission for the given id.
func (c *strm) DeleteOfflineStory(id int) error {
	err := c.db.DeleteStruct(&model.OfflineStory{ID: id})
	if errors.Cause(err) == storm.ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "could not delete offline story")
}

// ClearSyncedStories bulk-deletes any record already flagged as synced.
func (c *strm) ClearSyncedStories() error {
	err := c.db.Select(q.Eq("Synced", true)).Delete(new(model.OfflineStory))
	if errors.Cause(err) == storm.ErrNotFound {
		return nil
	}
	return errors.Wrap(err, "could not clear synced stories")
}

// Stats counts both collections and the unsynced subset.
func (c *strm) Stats() (Stats, error) {
	var stats Stats
	var err error

	if stats.FavoritesCount, err = c.db.Count(new(model.Favorite)); err != nil {
		return stats, errors.Wrap(err, "could not count favorites")
	}
	if stats.OfflineStoriesCount, err = c.db.Count(new(model.OfflineStory)); err != nil {
		return stats, errors.Wrap(err, "could not count offline stories")
	}

	stats.UnsyncedCount, err = c.db.Select(q.Eq("Synced", false)).Count(new(model.OfflineStory))
	return stats, errors.Wrap(err, "could not count unsynced stories")
}

// ClearAll wipes both collections.
func (c *strm) ClearAll() error {
	if err := c.db.Drop(&model.Favorite{}); err != nil {
		return errors.Wrap(err, "could not drop favorites")
	}
	if err := c.db.Drop(&model.OfflineStory{}); err != nil {
		return errors.Wrap(err, "could not drop offline stories")
	}

	// Recreate the collections so subsequent writes find their indexes.
	if err := c.db.Init(&model.Favorite{}); err != nil {
		return errors.Wrap(err, "could not init favorites indexes")
	}
	return errors.Wrap(c.db.Init(&model.OfflineStory{}), "could not init offline-stories indexes")
}
