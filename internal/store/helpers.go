// ABOUTME: SQL helper functions for query construction.
// ABOUTME: Request log path filters match literally, so LIKE wildcards are escaped.

package store

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeSQLLike escapes LIKE wildcards for use with ESCAPE '\'.
// Plugin ids and paths routinely contain underscores.
func escapeSQLLike(pattern string) string {
	return likeEscaper.Replace(pattern)
}
