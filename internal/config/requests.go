package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/motioninput/mimonitor/internal/models"
)

// RequestFileExt is the extension of control request files.
const RequestFileExt = ".yaml"

// RequestTTL is how long a mailbox request stays actionable. Older requests,
// such as ones left over from a previous daemon session, are discarded.
const RequestTTL = time.Minute

// SubmitRequest writes a control request into the daemon's mailbox.
func SubmitRequest(req *models.ControlRequest) (string, error) {
	if !req.Valid() {
		return "", fmt.Errorf("invalid control request: action %q", req.Action)
	}
	if err := EnsureGlobalDir(); err != nil {
		return "", err
	}
	dir, err := RequestsDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, req.ID+RequestFileExt)
	if err := SaveYAML(path, req); err != nil {
		return "", err
	}
	return path, nil
}

// IsRequestFile reports whether path looks like a request file
// (temp files written by SaveYAML are excluded).
func IsRequestFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, RequestFileExt) && !strings.HasPrefix(name, ".")
}

// TakeRequest reads and removes a request file. The file is removed even if it
// cannot be parsed so that a malformed request is not retried forever.
func TakeRequest(path string) (*models.ControlRequest, error) {
	var req models.ControlRequest
	loadErr := LoadYAML(path, &req)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove request %s: %w", path, err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	if !req.Valid() {
		return nil, fmt.Errorf("invalid control request in %s: action %q", path, req.Action)
	}
	return &req, nil
}

// PendingRequests lists request files currently in the mailbox, oldest name first.
func PendingRequests() ([]string, error) {
	dir, err := RequestsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsRequestFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
