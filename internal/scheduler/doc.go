// Package scheduler runs the pipeline once at startup and, in watch mode,
// again every day at a fixed wall-clock time.
//
// Trigger times are computed with calendar arithmetic in the configured
// location so DST transitions shift the interval instead of the wall-clock
// time. The clock is injectable for tests.
package scheduler
