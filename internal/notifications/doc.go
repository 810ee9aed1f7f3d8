// Package notifications delivers batch lifecycle events to an optional ntfy
// topic. Without a configured topic every notification is a silent noop.
package notifications
