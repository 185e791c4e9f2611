// Package migration manages versioned schema changes for the Postgres
// history backend, built on golang-migrate with SQL files embedded in
// the binary. SQLite deployments migrate through GORM instead and do
// not use this package.
package migration
