package library

import (
	"context"
	"time"

	"github.com/llehouerou/pocketwaves/internal/tags"
)

// mediaPageSize is how many assets are requested per media index page.
const mediaPageSize = 100

// Asset is an audio item known to a platform media index. Its URI is
// opaque and is used as the track id.
type Asset struct {
	URI      string
	Title    string
	Artist   string
	Album    string
	Artwork  string
	Duration time.Duration
}

type AssetPage struct {
	Assets  []Asset
	Next    string
	HasMore bool
}

// MediaIndex enumerates audio assets outside the import directory, a page
// at a time.
type MediaIndex interface {
	Assets(ctx context.Context, cursor string, limit int) (AssetPage, error)
}

// collectAssets pages through idx. On error the assets gathered so far are
// returned with the error.
func collectAssets(ctx context.Context, idx MediaIndex) ([]Asset, error) {
	var all []Asset
	cursor := ""
	for {
		page, err := idx.Assets(ctx, cursor, mediaPageSize)
		if err != nil {
			return all, err
		}
		all = append(all, page.Assets...)
		if !page.HasMore || page.Next == "" || page.Next == cursor {
			return all, nil
		}
		cursor = page.Next
	}
}

func (a Asset) track() Track {
	t := Track{
		ID:       a.URI,
		URI:      a.URI,
		Title:    a.Title,
		Artist:   a.Artist,
		Album:    a.Album,
		Artwork:  a.Artwork,
		Duration: a.Duration,
	}
	if t.Title == "" {
		t.Title = a.URI
	}
	if t.Artist == "" {
		t.Artist = tags.UnknownArtist
	}
	if t.Album == "" {
		t.Album = tags.UnknownAlbum
	}
	return t
}
