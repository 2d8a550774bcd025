// Package downloads answers one question for playback: is this chapter's
// audio already on disk? Download scheduling itself lives outside the
// playback core.
package downloads

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// audioExtensions in preference order. The first match wins.
var audioExtensions = []string{".m4a", ".m4b", ".mp3", ".ogg", ".flac"}

// Manager resolves chapter IDs to downloaded audio files under a root
// directory. The filesystem is abstracted so tests run in memory.
type Manager struct {
	fs   afero.Fs
	root string
}

// NewManager creates a manager over the OS filesystem.
func NewManager(root string) *Manager {
	return &Manager{fs: afero.NewOsFs(), root: root}
}

// NewManagerFS creates a manager over an explicit filesystem.
func NewManagerFS(fs afero.Fs, root string) *Manager {
	return &Manager{fs: fs, root: root}
}

// LocalPathFor returns the path of the downloaded audio for a chapter and
// whether it exists. An empty file does not count: a partial download is
// truncated to zero before being written, so zero-length means unusable.
func (m *Manager) LocalPathFor(chapterID string) (string, bool) {
	for _, ext := range audioExtensions {
		path := filepath.Join(m.root, chapterID+ext)
		info, err := m.fs.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		return path, true
	}
	return "", false
}

// Has reports whether the chapter is available locally.
func (m *Manager) Has(chapterID string) bool {
	_, ok := m.LocalPathFor(chapterID)
	return ok
}
