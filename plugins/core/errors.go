// ABOUTME: Error kinds returned by the plugin core.
// ABOUTME: Callers match them with errors.Is; missing hooks are not errors.

package core

import "errors"

var (
	// ErrAttributeNotFound is returned when an attribute key does not name a plugin field.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrInvalidAttribute is returned when a value cannot be stored in the named field.
	ErrInvalidAttribute = errors.New("invalid attribute value")

	// ErrPluginNotFound is returned when a registry operation targets a plugin it does not hold.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnknownPlugin is returned when no factory is registered for a resolved identity.
	ErrUnknownPlugin = errors.New("no factory registered for plugin")

	// ErrNoLocation is returned when a state change is requested on a plugin without a backing file.
	ErrNoLocation = errors.New("plugin has no backing file")
)
