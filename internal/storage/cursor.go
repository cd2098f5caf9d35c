package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/giftlist/backend/internal/models"
)

var ErrInvalidCursor = errors.New("invalid page cursor")

// cursor pins a position in a listing ordered by Key, then document ID.
type cursor struct {
	Key string `json:"k"`
	ID  string `json:"id"`
}

func encodeCursor(key, id string) string {
	b, _ := json.Marshal(cursor{Key: key, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, ErrInvalidCursor
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return cursor{}, ErrInvalidCursor
	}
	return c, nil
}

func cursorLess(aKey, aID, bKey, bID string) bool {
	if aKey != bKey {
		return aKey < bKey
	}
	return aID < bID
}

// pageWindow is a decoded PageRequest. Backends fetch up to Limit+1 rows
// after (or, when Before is set, immediately before) the cursor.
type pageWindow struct {
	Before    bool
	HasCursor bool
	At        cursor
	Limit     int
}

func newPageWindow(req models.PageRequest) (pageWindow, error) {
	req = req.Normalize()
	w := pageWindow{Limit: req.Limit}
	if req.Cursor == "" {
		return w, nil
	}
	c, err := decodeCursor(req.Cursor)
	if err != nil {
		return w, err
	}
	w.HasCursor = true
	w.At = c
	w.Before = req.Direction == models.PagePrev
	return w, nil
}

// buildPage trims a window fetched with Limit+1 rows in ascending order and
// derives the cursors around it.
func buildPage[T any](rows []T, key func(T) (string, string), w pageWindow) models.Page[T] {
	hasMore := len(rows) > w.Limit
	page := models.Page[T]{}

	if w.Before {
		if hasMore {
			rows = rows[len(rows)-w.Limit:]
		}
	} else if hasMore {
		rows = rows[:w.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	page.Items = rows
	if len(rows) == 0 {
		return page
	}

	firstKey, firstID := key(rows[0])
	lastKey, lastID := key(rows[len(rows)-1])
	if w.Before {
		page.NextCursor = encodeCursor(lastKey, lastID)
		if hasMore {
			page.PrevCursor = encodeCursor(firstKey, firstID)
		}
		return page
	}
	if hasMore {
		page.NextCursor = encodeCursor(lastKey, lastID)
	}
	if w.HasCursor {
		page.PrevCursor = encodeCursor(firstKey, firstID)
	}
	return page
}

func userPageKey(u models.UserDetail) (string, string) {
	return u.PageKey(), u.ID
}
