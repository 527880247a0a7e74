// Package store keeps sessions on disk: one folder per project, one
// timestamped YAML file per save.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-beats/debug"
	"go-beats/model"
)

const (
	timestampFormat = "2006-01-02_15-04-05"
	ext             = ".yaml"

	DefaultProject = "untitled"
)

// ErrNoSaves is returned by Load when a project has nothing to load
var ErrNoSaves = errors.New("no saves")

// SaveInfo represents a saved session file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Label is the name, or the timestamp for unnamed saves
func (s SaveInfo) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Timestamp.Format("2006-01-02 15:04:05")
}

// Store is a projects directory
type Store struct {
	Dir string

	now func() time.Time
}

// New returns a store rooted at dir
func New(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

func (s *Store) projectDir(project string) (string, error) {
	if project == "" {
		project = DefaultProject
	}
	safe := sanitizeFilename(project)
	if safe == "" || safe == "." || safe == ".." {
		return "", fmt.Errorf("invalid project name %q", project)
	}
	return filepath.Join(s.Dir, safe), nil
}

// ListProjects returns all project folder names, sorted
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns the saves of a project, newest first
func (s *Store) ListSaves(project string) ([]SaveInfo, error) {
	dir, err := s.projectDir(project)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []SaveInfo{}, nil
		}
		return nil, fmt.Errorf("list saves: %w", err)
	}

	saves := []SaveInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parseFilename(entry.Name()); ok {
			saves = append(saves, info)
		}
	}

	sort.SliceStable(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseFilename reads 2024-01-15_14-30-00.yaml or 2024-01-15_14-30-00_name.yaml
func parseFilename(filename string) (SaveInfo, bool) {
	if !strings.HasSuffix(filename, ext) {
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(filename, ext)
	if len(base) < len(timestampFormat) {
		return SaveInfo{}, false
	}

	ts, err := time.ParseInLocation(timestampFormat, base[:len(timestampFormat)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}

	info := SaveInfo{Filename: filename, Timestamp: ts}
	rest := base[len(timestampFormat):]
	switch {
	case rest == "":
	case len(rest) > 1 && rest[0] == '_':
		info.Name = rest[1:]
	case len(rest) > 1 && rest[0] == '-' && isDigits(rest[1:]):
		// second save within the same second
	default:
		return SaveInfo{}, false
	}
	return info, true
}

// Save writes the session as a new timestamped file and returns its
// filename. An optional name is appended after the timestamp.
func (s *Store) Save(project, name string, sess *model.Session) (string, error) {
	if sess == nil {
		return "", errors.New("save: nil session")
	}
	dir, err := s.projectDir(project)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}

	data, err := yaml.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	filename := s.now().Format(timestampFormat)
	if safe := sanitizeFilename(name); safe != "" {
		filename += "_" + safe
	}
	filename += ext

	// Saves within the same second must not overwrite each other
	path := filepath.Join(dir, filename)
	for i := 2; fileExists(path); i++ {
		base := strings.TrimSuffix(filename, ext)
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write save: %w", err)
	}
	debug.Log("store", "saved %s/%s (%d bytes)", filepath.Base(dir), filepath.Base(path), len(data))
	return filepath.Base(path), nil
}

// Load reads a save; an empty filename loads the most recent one
func (s *Store) Load(project, filename string) (*model.Session, error) {
	dir, err := s.projectDir(project)
	if err != nil {
		return nil, err
	}

	if filename == "" {
		saves, err := s.ListSaves(project)
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, fmt.Errorf("project %s: %w", project, ErrNoSaves)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}

	sess := model.NewSession()
	if err := yaml.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	sess.Normalize()
	debug.Log("store", "loaded %s/%s: %d players, %d instruments",
		filepath.Base(dir), filename, len(sess.Players), len(sess.Instruments))
	return sess, nil
}

// DeleteSave deletes a specific save file
func (s *Store) DeleteSave(project, filename string) error {
	dir, err := s.projectDir(project)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, filepath.Base(filename))); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

// RenameSave changes the name part of a save, keeping its timestamp. It
// returns the new filename.
func (s *Store) RenameSave(project, filename, newName string) (string, error) {
	dir, err := s.projectDir(project)
	if err != nil {
		return "", err
	}
	filename = filepath.Base(filename)
	if _, ok := parseFilename(filename); !ok {
		return "", fmt.Errorf("invalid save filename %q", filename)
	}

	newFilename := filename[:len(timestampFormat)]
	if safe := sanitizeFilename(newName); safe != "" {
		newFilename += "_" + safe
	}
	newFilename += ext

	if newFilename == filename {
		return filename, nil
	}
	if fileExists(filepath.Join(dir, newFilename)) {
		return "", fmt.Errorf("rename save: %s already exists", newFilename)
	}
	if err := os.Rename(filepath.Join(dir, filename), filepath.Join(dir, newFilename)); err != nil {
		return "", fmt.Errorf("rename save: %w", err)
	}
	return newFilename, nil
}

// CreateProject creates a new empty project folder
func (s *Store) CreateProject(name string) error {
	dir, err := s.projectDir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// DeleteProject deletes an entire project folder
func (s *Store) DeleteProject(name string) error {
	dir, err := s.projectDir(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// RenameProject renames a project folder
func (s *Store) RenameProject(oldName, newName string) error {
	oldDir, err := s.projectDir(oldName)
	if err != nil {
		return err
	}
	newDir, err := s.projectDir(newName)
	if err != nil {
		return err
	}
	if fileExists(newDir) {
		return fmt.Errorf("rename project: %s already exists", filepath.Base(newDir))
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	" ", "-",
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// ProjectName is the folder name a project called name is stored under
func ProjectName(name string) string {
	if name == "" {
		return DefaultProject
	}
	return sanitizeFilename(name)
}

// sanitizeFilename replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(strings.TrimSpace(name))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
