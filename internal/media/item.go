// Package media defines the typed content model for playable items. Dynamic
// catalog documents are converted to these structs once, at the ingestion
// boundary; everything downstream works with typed values only.
package media

import "time"

// Item is the audiobook or album currently loaded for playback. Replaced
// wholesale when the user selects new content, never mutated.
type Item struct {
	ID       string    `mapstructure:"id" validate:"required"`
	Title    string    `mapstructure:"title" validate:"required"`
	Author   string    `mapstructure:"author"`
	IsMusic  bool      `mapstructure:"is_music"`
	IsFree   bool      `mapstructure:"is_free"`
	CoverURL string    `mapstructure:"cover_url"`
	Chapters []Chapter `mapstructure:"chapters" validate:"required,min=1,dive"`
}

// Chapter is one entry in an item's ordered chapter list.
type Chapter struct {
	ID        string        `mapstructure:"id" validate:"required"`
	Index     int           `mapstructure:"index" validate:"gte=0"`
	Title     string        `mapstructure:"title"`
	Duration  time.Duration `mapstructure:"duration" validate:"gt=0"`
	IsPreview bool          `mapstructure:"is_preview"`
	AudioURL  string        `mapstructure:"audio_url"`
}

// TotalDuration returns the summed duration of all chapters.
func (i *Item) TotalDuration() time.Duration {
	var total time.Duration
	for _, c := range i.Chapters {
		total += c.Duration
	}
	return total
}

// Chapter returns the chapter at index, or nil if out of range.
func (i *Item) Chapter(index int) *Chapter {
	if index < 0 || index >= len(i.Chapters) {
		return nil
	}
	return &i.Chapters[index]
}
