// Package notifications pushes run events to ntfy.
//
// The service publishes to the topic URL configured in config.toml and
// degrades to a no-op when no topic is set. Each event class can be toggled
// independently so watch mode stays quiet unless something was fetched or
// went wrong.
package notifications
