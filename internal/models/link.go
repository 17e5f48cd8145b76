package models

import (
	"strconv"
	"strings"
	"time"
)

// Link status constants.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Target kind constants.
const (
	KindParasha  = "parasha"
	KindHaftarah = "haftarah"
	KindTanach   = "tanach"
)

// Link associates a song with a parasha, a haftarah or a Tanach chapter.
type Link struct {
	ID            int64      `json:"id"`
	TargetKind    string     `json:"target_kind"`
	ParashaID     string     `json:"parasha_id"`
	TargetID      *string    `json:"target_id,omitempty"`
	SongID        string     `json:"song_id"`
	VerseRef      *string    `json:"verse_ref,omitempty"`
	AddedBy       *string    `json:"added_by,omitempty"`
	Status        string     `json:"status"`
	ApprovalToken *string    `json:"-"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	AddedAt       time.Time  `json:"added_at"`
}

// LinkWithSong is a link joined with the title and url of its song.
type LinkWithSong struct {
	Link
	SongTitle string  `json:"song_title"`
	SongURL   *string `json:"song_url,omitempty"`
}

// IsPending returns true if the link is awaiting moderation.
func (l *Link) IsPending() bool {
	return l.Status == StatusPending
}

// IsApproved returns true if the link is publicly visible.
func (l *Link) IsApproved() bool {
	return l.Status == StatusApproved
}

// IsRejected returns true if the link was rejected by a moderator.
func (l *Link) IsRejected() bool {
	return l.Status == StatusRejected
}

// Target returns the typed target descriptor for the link.
func (l *Link) Target() Target {
	return TargetFromColumns(l.TargetKind, l.ParashaID, l.TargetID)
}

// ValidStatus reports whether s is one of the three link statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Target describes what a link points at.
//
// Storage keeps the legacy layout where tanach rows carry the book id in
// parasha_id and "<book>:<chapter>" in target_id; Columns and
// TargetFromColumns are the only translation points.
type Target struct {
	Kind       string `json:"kind"`
	ParashaID  string `json:"parasha_id,omitempty"`
	HaftarahID string `json:"haftarah_id,omitempty"`
	Book       string `json:"book,omitempty"`
	Chapter    int    `json:"chapter,omitempty"`
}

// ParashaTarget returns a target for a weekly portion.
func ParashaTarget(parashaID string) Target {
	return Target{Kind: KindParasha, ParashaID: parashaID}
}

// HaftarahTarget returns a target for one of a portion's haftarot.
func HaftarahTarget(parashaID, haftarahID string) Target {
	return Target{Kind: KindHaftarah, ParashaID: parashaID, HaftarahID: haftarahID}
}

// TanachTarget returns a target for a Tanach chapter.
func TanachTarget(book string, chapter int) Target {
	return Target{Kind: KindTanach, Book: book, Chapter: chapter}
}

// TanachKey builds the composite target id stored for tanach links.
func TanachKey(book string, chapter int) string {
	return book + ":" + strconv.Itoa(chapter)
}

// Columns maps the target onto the parasha_id / target_id columns.
func (t Target) Columns() (parashaID string, targetID *string) {
	switch t.Kind {
	case KindHaftarah:
		id := t.HaftarahID
		return t.ParashaID, &id
	case KindTanach:
		key := TanachKey(t.Book, t.Chapter)
		return t.Book, &key
	default:
		return t.ParashaID, nil
	}
}

// ID returns the identifier used in notifications and logs.
func (t Target) ID() string {
	switch t.Kind {
	case KindHaftarah:
		return t.HaftarahID
	case KindTanach:
		return TanachKey(t.Book, t.Chapter)
	default:
		return t.ParashaID
	}
}

// TargetFromColumns rebuilds a target from stored columns.
func TargetFromColumns(kind, parashaID string, targetID *string) Target {
	switch kind {
	case KindHaftarah:
		t := Target{Kind: KindHaftarah, ParashaID: parashaID}
		if targetID != nil {
			t.HaftarahID = *targetID
		}
		return t
	case KindTanach:
		t := Target{Kind: KindTanach, Book: parashaID}
		if targetID != nil {
			if i := strings.LastIndexByte(*targetID, ':'); i >= 0 {
				t.Book = (*targetID)[:i]
				t.Chapter, _ = strconv.Atoi((*targetID)[i+1:])
			}
		}
		return t
	default:
		return Target{Kind: KindParasha, ParashaID: parashaID}
	}
}
