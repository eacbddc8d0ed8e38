// package models defines the data model for the session tracker
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package models

// Followers holds follower counts for a user profile.
type Followers struct {
	Total int `json:"total"`
}

// ExternalURLs holds known external URLs for an object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Profile represents the authenticated user's Spotify profile (the /me resource).
//
// Fetched with a valid credential, never persisted; discarded whenever the
// credential changes or expires.
type Profile struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	Country      string       `json:"country"`
	Product      string       `json:"product"` // premium, free, etc.
	Href         string       `json:"href"`
	URI          string       `json:"uri"`
	Followers    Followers    `json:"followers"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	Images       []Image      `json:"images"`
}

// Name returns the display name, falling back to the user ID when the
// profile has no display name set.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Artist represents a track artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album represents a track's album.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
	URI    string  `json:"uri"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	URI        string   `json:"uri"`
}

// NowPlaying represents the user's current playback state.
//
// Item is nil when nothing is playing.
type NowPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int    `json:"progress_ms"`
	Item       *Track `json:"item"`
}
