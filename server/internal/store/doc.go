// Package store holds the machine catalog. Repository is the contract used by
// the API, the CSV importer and the gRPC receiver; Memory keeps machines in a
// map guarded by a RWMutex, Postgres persists them through sqlx and the pgx
// stdlib driver.
//
// Unknown ids are reported as fault.NotFound. Machine ids are assigned by the
// store on Create and never reused.
package store
