package playback

import "fmt"

// Origin describes which view of the library produced the playing queue.
type Origin interface {
	fmt.Stringer
	isOrigin()
}

// AllSongs is the full library sorted by title.
type AllSongs struct{}

// Favorites is the favorites list.
type Favorites struct{}

// SearchResults is the result list of a search.
type SearchResults struct {
	Query string
}

type ByArtist struct {
	Artist string
}

type ByAlbum struct {
	Album  string
	Artist string
}

type ByPlaylist struct {
	PlaylistID string
	Title      string
}

func (AllSongs) isOrigin()      {}
func (Favorites) isOrigin()     {}
func (SearchResults) isOrigin() {}
func (ByArtist) isOrigin()      {}
func (ByAlbum) isOrigin()       {}
func (ByPlaylist) isOrigin()    {}

func (AllSongs) String() string  { return "All Songs" }
func (Favorites) String() string { return "Favorites" }

func (o SearchResults) String() string { return fmt.Sprintf("Search: %q", o.Query) }
func (o ByArtist) String() string      { return o.Artist }
func (o ByPlaylist) String() string    { return o.Title }

func (o ByAlbum) String() string {
	if o.Artist == "" {
		return o.Album
	}
	return o.Album + " - " + o.Artist
}
