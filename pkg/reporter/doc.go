// Package reporter periodically samples executor statistics and emits them
// as structured log lines, driven by a cron schedule.
package reporter
