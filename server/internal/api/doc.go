// Package api implements the HTTP REST API of the efficiency server.
//
// New(deps) returns a Server whose Handler serves, under /api/machines:
//
//	POST   /add                           create a machine
//	GET    /                              list machines
//	GET    /{id}                          one machine
//	PUT    /{id}                          replace name and measurement
//	DELETE /{id}                          remove a machine
//	GET    /paged                         page, size, sortBy, direction
//	GET    /search?name=                  case-insensitive name search
//	GET    /filter                        minEfficiency / maxEfficiency
//	POST   /evaluate                      score an ad-hoc measurement
//	GET    /{id}/efficiency-analysis      score, rule strengths, diagnostics
//	POST   /simulate                      cost out a production job
//	POST   /{id}/maintenance-plan         generate a maintenance schedule
//	POST   /compare                       compare machines on factors
//	GET    /{id}/optimization-suggestions improvement levers
//	POST   /recommend                     rank machines for a target
//	GET    /top-performers?limit=         best scores first
//	GET    /needs-improvement             scores below 50
//	GET    /statistics                    fleet summary
//	GET    /export/excel                  CSV download
//	POST   /import/excel                  multipart CSV upload (field "file")
//
// plus GET /api/alerts and GET /healthz.
//
// Errors are rendered as {"error", "kind", "trace_id"} with the status
// derived from the fault kind. Every response carries an X-Trace-Id header.
// Mutating routes are wrapped with the configured auth middleware.
package api
