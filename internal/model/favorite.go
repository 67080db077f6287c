package model

import "time"

// A Favorite represents a story the user pinned locally.
// It is a copy of the story's known fields at the time it was favorited;
// records are inserted and deleted, never updated in place.
type Favorite struct {
	ID          string     `json:"id"          msgpack:"id"           storm:"id"`
	Name        string     `json:"name"        msgpack:"name"         storm:"index"`
	Description string     `json:"description" msgpack:"description"`
	PhotoURL    string     `json:"photoUrl"    msgpack:"photo_url"`
	CreatedAt   time.Time  `json:"createdAt"   msgpack:"created_at"   storm:"index"`
	FavoritedAt time.Time  `json:"favoritedAt" msgpack:"favorited_at" storm:"index"`
	Lat         *float64   `json:"lat,omitempty" msgpack:"lat"`
	Lon         *float64   `json:"lon,omitempty" msgpack:"lon"`
}
