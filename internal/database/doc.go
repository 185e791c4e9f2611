// Package database opens and pools the relational backend used for
// durable conversation history. Postgres is the production driver;
// SQLite serves development and tests.
package database
