// ABOUTME: File-naming protocol that encodes plugin state on disk.
// ABOUTME: P<ext> is enabled, P.disabled<ext> is disabled.

package core

import (
	"path/filepath"
	"strings"
)

// DisabledMarker is the segment inserted before the extension of a disabled plugin file.
const DisabledMarker = ".disabled"

// DefaultExtension is the extension of plugin manifest files.
const DefaultExtension = ".yaml"

// DefaultSuffix is the base-name suffix that marks a file as a plugin candidate.
const DefaultSuffix = "Plugin"

// basePath returns the directory plus the first dot-separated segment of the file name.
func basePath(location string) string {
	name := filepath.Base(location)
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return filepath.Join(filepath.Dir(location), name)
}

// EnabledPath returns the enabled encoding of location.
func EnabledPath(location string) string {
	return basePath(location) + filepath.Ext(location)
}

// DisabledPath returns the disabled encoding of location.
func DisabledPath(location string) string {
	return basePath(location) + DisabledMarker + filepath.Ext(location)
}

// IsDisabledPath reports whether location uses the disabled encoding.
func IsDisabledPath(location string) bool {
	ext := filepath.Ext(location)
	return strings.HasSuffix(location, DisabledMarker+ext)
}

// stripEncoding removes the extension and disabled marker from a file name.
func stripEncoding(name, ext string) string {
	name = strings.TrimSuffix(name, DisabledMarker+ext)
	return strings.TrimSuffix(name, ext)
}
