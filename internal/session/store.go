// Package session names and locates the artifact files of one recorded
// session. Sessions are identified by explicit uuid strings; nothing
// here guesses at "the latest" file, callers always pass an id.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/logging"
)

const (
	eventsPrefix    = "events_"
	adjacencyPrefix = "adjacency_"
	analysisPrefix  = "analysis_"
	artifactExt     = ".json"
)

// Session points at the artifact files of one recorded session.
type Session struct {
	ID  string
	Dir string
}

// EventsPath returns the event artifact path for this session.
func (s *Session) EventsPath() string {
	return filepath.Join(s.Dir, eventsPrefix+s.ID+artifactExt)
}

// AdjacencyPath returns the adjacency artifact path for this session.
func (s *Session) AdjacencyPath() string {
	return filepath.Join(s.Dir, adjacencyPrefix+s.ID+artifactExt)
}

// AnalysisPath returns the analysis report path for this session.
func (s *Session) AnalysisPath() string {
	return filepath.Join(s.Dir, analysisPrefix+s.ID+artifactExt)
}

// IDFromEventsFile extracts the session id from an event artifact file
// name of the form "events_<id>.json".
func IDFromEventsFile(name string) (string, bool) {
	if !strings.HasPrefix(name, eventsPrefix) || !strings.HasSuffix(strings.ToLower(name), artifactExt) {
		return "", false
	}
	id := name[len(eventsPrefix) : len(name)-len(artifactExt)]
	if id == "" {
		return "", false
	}
	return id, true
}

// Info is one row of a session listing.
type Info struct {
	ID           string
	Start        time.Time
	Description  string
	EventCount   int
	Components   int
	HasAdjacency bool
	HasAnalysis  bool
}

// Store manages the sessions under one directory.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore binds a store to a session directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory must not be empty")
	}
	return &Store{dir: dir, logger: logging.GetLogger("session")}, nil
}

// Dir returns the directory the store is bound to.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the session directory if it does not exist yet.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// New creates a handle for a fresh session with a new uuid. No files
// exist until the caller writes artifacts to the handle's paths.
func (s *Store) New() *Session {
	return &Session{ID: uuid.NewString(), Dir: s.dir}
}

// Get resolves an explicit session id. The session's events artifact
// must exist.
func (s *Store) Get(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	sess := &Session{ID: id, Dir: s.dir}
	if _, err := os.Stat(sess.EventsPath()); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s has no events artifact in %s", id, s.dir)
		}
		return nil, fmt.Errorf("failed to stat events artifact for session %s: %w", id, err)
	}
	return sess, nil
}

// List scans the directory for event artifacts and reads their
// metadata. Artifacts that cannot be read are skipped with a warning so
// one corrupt file does not hide the others.
func (s *Store) List() ([]Info, error) {
	paths, err := artifact.NewDirectoryWalker().WalkJSON(s.dir)
	if err != nil {
		return nil, err
	}

	var infos []Info
	for _, path := range paths {
		id, ok := IDFromEventsFile(filepath.Base(path))
		if !ok {
			continue
		}
		meta, err := readEventMetadata(path)
		if err != nil {
			s.logger.WarnWithFields("skipping unreadable event artifact",
				logging.Field("path", path),
				logging.Field("error", err.Error()))
			continue
		}

		sess := &Session{ID: id, Dir: filepath.Dir(path)}
		infos = append(infos, Info{
			ID:           id,
			Start:        artifact.UnixSecondsToTime(meta.StartTimestamp),
			Description:  meta.Description,
			EventCount:   meta.NEvents,
			Components:   meta.NComponents,
			HasAdjacency: fileExists(sess.AdjacencyPath()),
			HasAnalysis:  fileExists(sess.AnalysisPath()),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Start.Equal(infos[j].Start) {
			return infos[i].Start.Before(infos[j].Start)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// readEventMetadata decodes only the metadata block of an event
// artifact. Listing does not need the event payload.
func readEventMetadata(path string) (*artifact.EventMetadata, error) {
	f, err := artifact.NewFileReader().Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc struct {
		Metadata artifact.EventMetadata `json:"metadata"`
	}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metadata: %w", err)
	}
	return &doc.Metadata, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
