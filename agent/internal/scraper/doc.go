// Package scraper reads machine telemetry from Prometheus text exporters.
//
// New(config.Machine) returns a Scraper whose Scrape fetches the exporter's
// metrics endpoint, parses it with expfmt and sums the configured series
// across label sets into a Sample of raw counter totals. API key, bearer and
// basic auth are injected by a shared RoundTripper.
package scraper
