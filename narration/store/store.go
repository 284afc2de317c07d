// Package store persists generated scripts and window caches as opaque blobs keyed by
// slash-separated paths.
package store

import (
	"errors"
	"path"
	"strings"
)

var ErrNotFound = errors.New("store: not found")

const scriptDir = "script"

// ScriptKey is where the finalized script for a course lives.
func ScriptKey(courseID string) string {
	return path.Join(cleanCourseID(courseID), scriptDir, "smart_script.json")
}

func ScriptMetaKey(courseID string) string {
	return path.Join(cleanCourseID(courseID), scriptDir, "smart_script.meta.json")
}

func WindowCacheKey(courseID string) string {
	return path.Join(cleanCourseID(courseID), scriptDir, "smart_script.windows.json")
}

// cleanCourseID keeps a course id from escaping its own prefix.
func cleanCourseID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.NewReplacer("/", "_", "\\", "_").Replace(id)
	if id == "" || id == "." || id == ".." {
		return "_"
	}
	return id
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return errors.New("store: invalid key " + key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return errors.New("store: invalid key " + key)
		}
	}
	return nil
}
