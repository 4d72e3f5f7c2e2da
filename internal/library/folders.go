package library

import (
	"context"
	"time"
)

// Folder is a user-granted import root.
type Folder struct {
	URI     string
	AddedAt time.Time
}

// AddFolder records a folder. Re-adding keeps the original timestamp.
func (l *Library) AddFolder(ctx context.Context, uri string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO added_folders (uri, addedAt) VALUES (?, ?)
		ON CONFLICT(uri) DO NOTHING
	`, l.codec.ToStableID(uri), l.now().UnixMilli())
	return err
}

// Folders returns recorded folders, oldest first.
func (l *Library) Folders(ctx context.Context) ([]Folder, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT uri, addedAt FROM added_folders ORDER BY addedAt, uri`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var uri string
		var addedAt int64
		if err := rows.Scan(&uri, &addedAt); err != nil {
			return nil, err
		}
		folders = append(folders, Folder{URI: l.codec.ToAbsolute(uri), AddedAt: time.UnixMilli(addedAt)})
	}
	return folders, rows.Err()
}

func (l *Library) RemoveFolder(ctx context.Context, uri string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM added_folders WHERE uri = ?`, l.codec.ToStableID(uri))
	return err
}
