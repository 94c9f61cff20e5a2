// Package config loads and watches the agent configuration file.
//
// Config{Agent, Log} is parsed from YAML, then EFFICIENCY_AGENT_* environment
// variables override the scalar settings (server endpoint, scrape interval,
// buffer size, log level and format). Each Machine names one exporter
// endpoint and the metric series its measurements are read from; unset
// metric names take the machine_* defaults.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on change and
// re-adds the watch after an atomic save replaces the inode.
package config
