// Package config loads the server-side configuration from config.yaml (the
// `agent:` key is ignored by the server binary).
//
// Sections:
//   - server: listener ports and client authentication
//   - model: rule-base path and fallback/resolution overrides
//   - analytics: business constants for cost, savings and planning
//   - storage: catalog backend (memory or postgres)
//   - stream: WebSocket statistics broadcast interval
//   - alerts: alert rules and webhook targets
//   - log: level and handler format
//
// Load(path) applies defaults before unmarshalling, then a .env file and
// EFFICIENCY_* environment variables, then validates.
package config
