// Package errmsg formats failures for the command line.
package errmsg

import (
	"errors"
	"fmt"
)

// Op names an operation that can fail.
type Op string

const (
	// Library
	OpLibrarySync    Op = "sync library"
	OpLibraryImport  Op = "import files"
	OpLibraryDelete  Op = "delete track"
	OpLibraryDedupe  Op = "remove duplicate tracks"
	OpLibraryLoad    Op = "load library"
	OpLibrarySearch  Op = "search library"
	OpLibraryMigrate Op = "migrate library paths"
	OpHistoryLoad    Op = "load history"
	OpHistoryClear   Op = "clear history"
	OpFolderAdd      Op = "add folder"
	OpFolderRemove   Op = "remove folder"
	OpWatch          Op = "watch library folders"

	// Playlists
	OpPlaylistCreate   Op = "create playlist"
	OpPlaylistRename   Op = "rename playlist"
	OpPlaylistDelete   Op = "delete playlist"
	OpPlaylistLoad     Op = "load playlist"
	OpPlaylistAddTrack Op = "add track to playlist"
	OpPlaylistRemove   Op = "remove track from playlist"

	// Playback
	OpPlaybackStart  Op = "start playback"
	OpPlaybackSeek   Op = "seek"
	OpFavoriteToggle Op = "update favorites"
	OpLyricsFetch    Op = "fetch lyrics"
	OpLyricsSave     Op = "save lyrics"

	// Startup
	OpConfigLoad Op = "load configuration"
	OpStateOpen  Op = "open database"
	OpInitialize Op = "initialize application"
)

// Format returns "Failed to <op>: <err>", or "" for a nil error.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith is Format with the subject of the operation quoted.
func FormatWith(op Op, subject string, err error) string {
	if err == nil {
		return ""
	}
	if subject == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, subject, err)
}

// Error is an error that prints as Format output and unwraps to the cause.
type Error struct {
	Op      Op
	Subject string
	Err     error
}

func (e *Error) Error() string { return FormatWith(e.Op, e.Subject, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err tagged with op, or nil when err is nil.
func Wrap(op Op, err error) error {
	return WrapWith(op, "", err)
}

// WrapWith is Wrap with a subject.
func WrapWith(op Op, subject string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, Subject: subject, Err: err}
}
