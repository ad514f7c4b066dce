// Package playlistfile builds playlists from YAML playlist files or from a
// directory of audio files.
package playlistfile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/19deck/internal/app/filter"
	"github.com/osa030/19deck/internal/domain/playlist"
	"github.com/osa030/19deck/internal/domain/track"
	"github.com/osa030/19deck/internal/infra/audio"
)

// ErrNoTracks is returned when every entry was rejected or none was found.
var ErrNoTracks = errors.New("no playable tracks")

// File is the on-disk playlist format.
type File struct {
	Name   string  `yaml:"name"`
	Tracks []Entry `yaml:"tracks" validate:"required,min=1,dive"`
}

// Entry is one track declaration.
type Entry struct {
	ID     string `yaml:"id"`     // Generated from the source when empty
	Title  string `yaml:"title"`  // Read from tags when empty
	Artist string `yaml:"artist"` // Read from tags when empty
	Source string `yaml:"source" validate:"required"`
	Cover  string `yaml:"cover"`
}

// Options controls how a playlist is built.
type Options struct {
	Name     string        // Overrides the playlist name
	SkipTags bool          // Do not read title/artist from audio tags
	Chain    *filter.Chain // Admission filters, nil admits everything
}

// Load builds a playlist from path. A directory is scanned recursively for
// supported audio files; anything else is parsed as a playlist file.
func Load(ctx context.Context, path string, opts Options) (*playlist.Playlist, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat playlist")
	}

	var (
		name    string
		entries []filter.Entry
	)
	if info.IsDir() {
		name = filepath.Base(filepath.Clean(path))
		entries, err = Scan(path)
	} else {
		name, entries, err = readFile(path)
	}
	if err != nil {
		return nil, err
	}

	if !opts.SkipTags {
		for i := range entries {
			enrich(&entries[i].Track)
		}
	}

	tracks := admit(ctx, entries, opts.Chain)
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrNoTracks, "playlist %s", path)
	}

	if opts.Name != "" {
		name = opts.Name
	}
	zlog.Info().Msgf("playlist loaded: name=%s tracks=%d rejected=%d", name, len(tracks), len(entries)-len(tracks))
	return playlist.New(name, tracks)
}

// Parse parses and validates a playlist file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse playlist file")
	}

	validate := validator.New()
	if err := validate.Struct(&f); err != nil {
		return nil, errors.Wrap(err, "playlist validation failed")
	}
	return &f, nil
}

// Scan walks root and returns an entry for every supported audio file in
// lexical order.
func Scan(root string) ([]filter.Entry, error) {
	var entries []filter.Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && audio.IsSupported(path) {
			entries = append(entries, filter.Entry{
				Track:  track.Track{ID: sourceID(path), SourceRef: path},
				Origin: filter.OriginScanned,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", root)
	}
	return entries, nil
}

func readFile(path string) (string, []filter.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read playlist file")
	}

	f, err := Parse(data)
	if err != nil {
		return "", nil, errors.Wrapf(err, "playlist %s", path)
	}

	dir := filepath.Dir(path)
	entries := make([]filter.Entry, 0, len(f.Tracks))
	for _, e := range f.Tracks {
		source := resolve(dir, e.Source)
		id := e.ID
		if id == "" {
			id = sourceID(source)
		}
		entries = append(entries, filter.Entry{
			Track: track.Track{
				ID:        id,
				Title:     e.Title,
				Artist:    e.Artist,
				SourceRef: source,
				CoverRef:  resolve(dir, e.Cover),
			},
			Origin: filter.OriginDeclared,
		})
	}

	name := f.Name
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return name, entries, nil
}

// admit runs entries through chain in order, skipping rejected ones.
func admit(ctx context.Context, entries []filter.Entry, chain *filter.Chain) []track.Track {
	accepted := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		if chain != nil {
			if result := chain.Execute(ctx, e, accepted); !result.Accepted {
				zlog.Warn().Msgf("playlist entry rejected: id=%s source=%s code=%s", e.Track.ID, e.Track.SourceRef, result.Code)
				continue
			}
		}
		accepted = append(accepted, e.Track)
	}
	return accepted
}

// enrich fills a missing title or artist from the file's tags.
func enrich(t *track.Track) {
	if t.Title != "" && t.Artist != "" {
		return
	}
	if isURI(t.SourceRef) {
		return
	}

	f, err := os.Open(t.SourceRef)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		zlog.Debug().Msgf("playlist: no tags: source=%s err=%v", t.SourceRef, err)
		return
	}
	if t.Title == "" {
		t.Title = m.Title()
	}
	if t.Artist == "" {
		t.Artist = m.Artist()
	}
}

// sourceID derives a stable track ID from a source reference.
func sourceID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

func resolve(dir, ref string) string {
	if ref == "" || isURI(ref) || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dir, ref)
}

func isURI(ref string) bool {
	return strings.Contains(ref, "://")
}
