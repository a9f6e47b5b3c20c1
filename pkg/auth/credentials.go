package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	errs "vkmusic/pkg/errors"
)

// Credentials is the login material cached between runs. Either Login and
// Password or Token and UserID must be present.
type Credentials struct {
	Login    string
	Password string
	Token    string
	UserID   int64
}

// HasToken reports whether the credentials carry a usable token pair
func (c *Credentials) HasToken() bool {
	return c.Token != "" && c.UserID != 0
}

// Cache failure sentinels. Both are Configuration errors: the caller must
// restart with explicit login and password.
var (
	ErrCacheMissing = errors.New("authorization cache not found; restart with --login and --password")
	ErrCacheCorrupt = errors.New("authorization cache is malformed; restart with --login and --password")
)

// FileStore persists credentials as an ordered list of plaintext lines:
// two lines mean a login/password pair, four or more mean
// login/password/token/userID with any extra lines ignored.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given cache file path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the cache file location
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the cache file is present
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read loads and parses the cache file. A missing file yields ErrCacheMissing
// and a line count that is neither 2 nor >=4 yields ErrCacheCorrupt; neither
// triggers any network activity.
func (s *FileStore) Read() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrorTypeConfiguration, "reading authorization cache", ErrCacheMissing)
		}
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "reading authorization cache", err)
	}

	lines := splitLines(string(data))
	switch {
	case len(lines) == 2:
		return &Credentials{Login: lines[0], Password: lines[1]}, nil
	case len(lines) >= 4:
		userID, err := strconv.ParseInt(strings.TrimSpace(lines[3]), 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfiguration, "invalid user id in authorization cache", ErrCacheCorrupt)
		}
		return &Credentials{
			Login:    lines[0],
			Password: lines[1],
			Token:    lines[2],
			UserID:   userID,
		}, nil
	default:
		return nil, errs.Wrap(errs.ErrorTypeConfiguration,
			fmt.Sprintf("authorization cache has %d fields", len(lines)), ErrCacheCorrupt)
	}
}

// Write replaces the cache file as a whole. The temp-file-plus-rename dance
// guarantees the file never mixes an old and a new credential pair.
func (s *FileStore) Write(creds *Credentials) error {
	var lines []string
	if creds.HasToken() {
		lines = []string{creds.Login, creds.Password, creds.Token, strconv.FormatInt(creds.UserID, 10)}
	} else {
		lines = []string{creds.Login, creds.Password}
	}

	content := strings.Join(lines, "\n") + "\n"

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, []byte(content), 0600); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to write authorization cache", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		os.Remove(tempFile)
		return errs.Wrap(errs.ErrorTypeStorage, "failed to replace authorization cache", err)
	}

	return nil
}

// Delete removes the cache file. A missing file is not an error.
func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to delete authorization cache", err)
	}
	return nil
}

// splitLines splits on newlines, dropping a single trailing empty line so a
// file ending in "\n" parses to its logical field count
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
