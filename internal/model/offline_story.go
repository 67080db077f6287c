package model

import "time"

// An OfflineStory is a story submission queued locally because it could not
// be sent at creation time. The ID is a locally assigned sequence number; the
// remote identifier does not exist until the upload succeeds.
//
// A successfully uploaded record is deleted rather than flipped to synced;
// the Synced flag only exists to support a lazy sweep of stragglers.
type OfflineStory struct {
	ID          int        `json:"id"          msgpack:"id"          storm:"id,increment"`
	Description string     `json:"description" msgpack:"description"`
	Photo       []byte     `json:"-"           msgpack:"photo"`
	PhotoName   string     `json:"photoName"   msgpack:"photo_name"`
	Lat         *float64   `json:"lat,omitempty" msgpack:"lat"`
	Lon         *float64   `json:"lon,omitempty" msgpack:"lon"`
	Token       string     `json:"-"           msgpack:"token"`
	CreatedAt   time.Time  `json:"createdAt"   msgpack:"created_at"  storm:"index"`
	Synced      bool       `json:"synced"      msgpack:"synced"      storm:"index"`
	SyncedAt    *time.Time `json:"syncedAt,omitempty" msgpack:"synced_at"`
}
