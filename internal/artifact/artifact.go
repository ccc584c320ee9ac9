// Package artifact stores published game artifacts. Publishers upload a game
// as an ordered series of chunks; the content lands in a versioned file and a
// row in the artifact log makes it visible.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"playmatch/lobby/internal/models"
	"playmatch/lobby/internal/repository"
	"playmatch/lobby/internal/wire"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var (
	ErrInvalidName      = errors.New("game name must be a plain file name")
	ErrInvalidChunk     = errors.New("chunk index must be within total_chunks")
	ErrChunkTooLarge    = errors.New("chunk exceeds the maximum size")
	ErrNameTaken        = errors.New("game name is published by another user")
	ErrUploadInProgress = errors.New("another user is uploading a game with this name")
	ErrNoUpload         = errors.New("no upload in progress for this game")
	ErrOutOfOrderChunk  = errors.New("chunk out of order, upload aborted")
	ErrNotFound         = errors.New("game does not exist")
	ErrArtifactTooLarge = errors.New("game exceeds the maximum size, upload aborted")
)

const tempPrefix = ".upload-"

// replyRoom is kept free in a frame for the download reply around the content.
const replyRoom = 4 << 10

// MaxArtifactBytes is the largest encoded content one download reply can carry.
const MaxArtifactBytes = wire.MaxFrameSize - replyRoom

// Chunk is one piece of an upload.
type Chunk struct {
	Name        string
	Index       int
	Total       int
	Content     string
	Description string
}

// Game is a published artifact.
type Game struct {
	Name        string
	Publisher   string
	Description string
	Size        int64

	path string
}

type Options struct {
	MaxChunkBytes int
	MaxChunks     int
	// MaxArtifactBytes bounds the JSON-escaped size of a whole game. It is
	// capped at MaxArtifactBytes so a download always fits in one frame.
	MaxArtifactBytes int
}

type upload struct {
	publisher   string
	description string
	total       int
	next        int
	encoded     int
	file        afero.File
}

type Store struct {
	fs   afero.Fs
	dir  string
	log  repository.ArtifactLog
	opts Options
	l    *logrus.Entry

	mu      sync.Mutex
	games   map[string]Game
	uploads map[string]*upload
}

// NewStore opens the artifact directory on fs and rebuilds the index from
// the artifact log. Leftover upload buffers from a previous run are removed.
func NewStore(ctx context.Context, fs afero.Fs, dir string, log repository.ArtifactLog, opts Options) (*Store, error) {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = 64 << 10
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 4096
	}
	if opts.MaxArtifactBytes <= 0 || opts.MaxArtifactBytes > MaxArtifactBytes {
		opts.MaxArtifactBytes = MaxArtifactBytes
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	s := &Store{
		fs:      fs,
		dir:     dir,
		log:     log,
		opts:    opts,
		l:       logrus.WithField("component", "artifact"),
		games:   make(map[string]Game),
		uploads: make(map[string]*upload),
	}

	leftovers, err := afero.Glob(fs, filepath.Join(dir, tempPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("scan artifact dir: %w", err)
	}
	for _, path := range leftovers {
		_ = fs.Remove(path)
	}

	records, err := log.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay artifact log: %w", err)
	}
	for _, rec := range records {
		s.games[rec.Name] = Game{
			Name:        rec.Name,
			Publisher:   rec.Publisher,
			Description: rec.Description,
			Size:        rec.Size,
			path:        rec.Path,
		}
	}
	for name, g := range s.games {
		if _, err := fs.Stat(filepath.Join(dir, g.path)); err != nil {
			s.l.WithField("game", name).WithError(err).Warn("Content file missing, game skipped")
			delete(s.games, name)
		}
	}

	s.l.WithField("games", len(s.games)).Info("Artifact index loaded")
	return s, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// validChunk checks chunk against the limits. Total may be omitted after
// the first chunk.
func (s *Store) validChunk(chunk Chunk) error {
	if chunk.Index < 0 || chunk.Total < 0 || chunk.Total > s.opts.MaxChunks ||
		(chunk.Total > 0 && chunk.Index >= chunk.Total) || (chunk.Index == 0 && chunk.Total == 0) {
		return ErrInvalidChunk
	}
	if len(chunk.Content) > s.opts.MaxChunkBytes {
		return ErrChunkTooLarge
	}
	return nil
}

// encodedLen is the size of content once escaped into a JSON string.
func encodedLen(content string) (int, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return 0, err
	}
	return len(b) - 2, nil
}

// PutChunk adds chunk to publisher's upload. It reports done once the final
// chunk has been committed and the game is listed. Any rejected chunk from
// the uploading publisher aborts the upload.
func (s *Store) PutChunk(ctx context.Context, publisher string, chunk Chunk) (bool, error) {
	if !validName(chunk.Name) {
		return false, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validChunk(chunk); err != nil {
		if up, ok := s.uploads[chunk.Name]; ok && up.publisher == publisher {
			s.discardLocked(chunk.Name, up)
		}
		return false, err
	}

	var up *upload
	if chunk.Index == 0 {
		if g, ok := s.games[chunk.Name]; ok && g.Publisher != publisher {
			return false, ErrNameTaken
		}
		if prev, ok := s.uploads[chunk.Name]; ok {
			if prev.publisher != publisher {
				return false, ErrUploadInProgress
			}
			s.discardLocked(chunk.Name, prev)
		}

		file, err := afero.TempFile(s.fs, s.dir, tempPrefix+chunk.Name+"-")
		if err != nil {
			return false, fmt.Errorf("open upload buffer: %w", err)
		}
		up = &upload{
			publisher:   publisher,
			description: chunk.Description,
			total:       chunk.Total,
			file:        file,
		}
		s.uploads[chunk.Name] = up
	} else {
		var ok bool
		up, ok = s.uploads[chunk.Name]
		if !ok || up.publisher != publisher {
			return false, ErrNoUpload
		}
		if chunk.Index != up.next || (chunk.Total != 0 && chunk.Total != up.total) {
			s.discardLocked(chunk.Name, up)
			return false, ErrOutOfOrderChunk
		}
	}

	n, err := encodedLen(chunk.Content)
	if err != nil {
		s.discardLocked(chunk.Name, up)
		return false, fmt.Errorf("measure chunk %d of %q: %w", chunk.Index, chunk.Name, err)
	}
	if up.encoded+n > s.opts.MaxArtifactBytes {
		s.discardLocked(chunk.Name, up)
		return false, ErrArtifactTooLarge
	}
	up.encoded += n

	if _, err := up.file.WriteString(chunk.Content); err != nil {
		s.discardLocked(chunk.Name, up)
		return false, fmt.Errorf("write chunk %d of %q: %w", chunk.Index, chunk.Name, err)
	}
	up.next++
	if up.next < up.total {
		return false, nil
	}

	if err := s.commitLocked(ctx, chunk.Name, up); err != nil {
		return false, err
	}
	return true, nil
}

// commitLocked turns a complete upload into the current version of name.
func (s *Store) commitLocked(ctx context.Context, name string, up *upload) error {
	delete(s.uploads, name)
	tmp := up.file.Name()

	if err := up.file.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("close upload buffer: %w", err)
	}

	rel := name + "." + ulid.Make().String()
	dst := filepath.Join(s.dir, rel)
	if err := s.fs.Rename(tmp, dst); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("store content of %q: %w", name, err)
	}

	info, err := s.fs.Stat(dst)
	if err != nil {
		_ = s.fs.Remove(dst)
		return fmt.Errorf("stat content of %q: %w", name, err)
	}

	rec := &models.ArtifactRecord{
		Name:        name,
		Publisher:   up.publisher,
		Description: up.description,
		Path:        rel,
		Size:        info.Size(),
	}
	if err := s.log.Append(ctx, rec); err != nil {
		_ = s.fs.Remove(dst)
		return fmt.Errorf("append artifact log: %w", err)
	}

	prev, existed := s.games[name]
	s.games[name] = Game{
		Name:        name,
		Publisher:   up.publisher,
		Description: up.description,
		Size:        rec.Size,
		path:        rel,
	}
	if existed && prev.path != rel {
		if err := s.fs.Remove(filepath.Join(s.dir, prev.path)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.l.WithField("game", name).WithError(err).Warn("Failed to remove previous version")
		}
	}

	s.l.WithFields(logrus.Fields{
		"game": name, "publisher": up.publisher, "size": rec.Size, "chunks": up.total,
	}).Info("Game published")
	return nil
}

func (s *Store) discardLocked(name string, up *upload) {
	delete(s.uploads, name)
	tmp := up.file.Name()
	_ = up.file.Close()
	_ = s.fs.Remove(tmp)
	s.l.WithFields(logrus.Fields{"game": name, "publisher": up.publisher}).Debug("Upload discarded")
}

// AbortPublisher discards every pending upload of publisher and returns how
// many there were.
func (s *Store) AbortPublisher(publisher string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for name, up := range s.uploads {
		if up.publisher == publisher {
			s.discardLocked(name, up)
			n++
		}
	}
	return n
}

// List returns the published games sorted by name.
func (s *Store) List() []Game {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Get(name string) (Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[name]
	return g, ok
}

// Download returns the full content of the current version of name.
func (s *Store) Download(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[name]
	if !ok {
		return "", ErrNotFound
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, g.path))
	if err != nil {
		return "", fmt.Errorf("read content of %q: %w", name, err)
	}
	return string(data), nil
}
