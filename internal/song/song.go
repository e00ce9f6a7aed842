// Package song implements the song record and prober: opening an audio
// file, reading its container-level metadata, and recording the Format the
// decoder engine uses at playback time to pick its backend.
package song

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dhowden "github.com/dhowden/tag"
	"github.com/yumeno-dev/musingd/internal/errkind"
	"github.com/yumeno-dev/musingd/internal/tag"
)

// Format identifies which decode backend a file uses, chosen by extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatMP3
	FormatFLAC
	FormatVorbis
)

// formatByExt maps a lowercase extension (with leading dot) to a Format.
// Extensions accepted by the library scan but without a wired decoder
// (aac, m4a, wav, aif, aifc, aiff, oga) resolve to FormatUnknown; decoding
// such a file fails with a FileError at playback time, matching the spec's
// "fail construction with a descriptive error if the codec is unsupported".
var formatByExt = map[string]Format{
	".mp3":  FormatMP3,
	".flac": FormatFLAC,
	".ogg":  FormatVorbis,
}

// DetectFormat returns the Format implied by path's extension.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	return formatByExt[ext]
}

// Song is an immutable record: an absolute path plus its merged metadata.
// It is created once by From; a re-read produces a new Song, never a
// mutation of an existing one.
type Song struct {
	Path     string
	Metadata tag.Metadata
	Format   Format
}

// SongRef is the light payload handed to the decoder engine, so playback
// doesn't need to re-read metadata.
type SongRef struct {
	Path   string
	Format Format
}

// Ref returns the lightweight reference to s.
func (s *Song) Ref() SongRef {
	return SongRef{Path: s.Path, Format: s.Format}
}

// From opens path, probes it, and returns a Song. It surfaces a readable
// FileError on failure so callers (library build/update) can log and skip
// rather than abort.
func From(path string, gaplessHint bool) (*Song, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("open %s: %w", absPath, err))
	}
	defer f.Close()

	m, err := dhowden.ReadFrom(f)
	if err != nil {
		return nil, errkind.Wrap(errkind.File, fmt.Errorf("read metadata %s: %w", absPath, err))
	}

	md := containerMetadata(m)
	md[tag.Path] = absPath
	md[tag.Format] = strings.TrimPrefix(strings.ToLower(filepath.Ext(absPath)), ".")

	return &Song{
		Path:     absPath,
		Metadata: md,
		Format:   DetectFormat(absPath),
	}, nil
}

// containerMetadata converts a dhowden/tag Metadata object into our own
// tag.Metadata, following the teacher's extractTrackMetadata field-by-field
// translation (internal/playlist/track.go).
func containerMetadata(m dhowden.Metadata) tag.Metadata {
	out := make(tag.Metadata)
	if m == nil {
		return out
	}
	set := func(k tag.Key, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set(tag.Title, m.Title())
	set(tag.Artist, m.Artist())
	set(tag.Album, m.Album())
	set(tag.AlbumArtist, m.AlbumArtist())
	set(tag.Genre, m.Genre())
	set(tag.Composer, m.Composer())
	set(tag.Comment, m.Comment())
	if y := m.Year(); y != 0 {
		out[tag.Year] = fmt.Sprintf("%d", y)
	}
	if n, total := m.Track(); n != 0 {
		if total != 0 {
			out[tag.Tracknumber] = fmt.Sprintf("%d/%d", n, total)
		} else {
			out[tag.Tracknumber] = fmt.Sprintf("%d", n)
		}
	}
	if n, total := m.Disc(); n != 0 {
		if total != 0 {
			out[tag.Discnumber] = fmt.Sprintf("%d/%d", n, total)
		} else {
			out[tag.Discnumber] = fmt.Sprintf("%d", n)
		}
	}
	return out
}
