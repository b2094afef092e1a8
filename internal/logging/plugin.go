// ABOUTME: Plugin detection for request logging.
// ABOUTME: Extracts the targeted plugin identity from an admin API path.

package logging

import "strings"

// PluginFromPath returns the plugin identity addressed by /plugins/{id}/...
// and an empty string for every other path.
func PluginFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/plugins/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
