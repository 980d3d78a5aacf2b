// Package services defines shared utilities consumed by the pipeline and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, video IDs, and triggers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries a
//     classification (auth, fetch, resolution, no_stream, agent) that callers
//     test with errors.Is.
//
// Integrations live in subpackages: vhx for the platform API and ytdlp for
// the external download agent.
package services
