// Package database opens the SQL connection backing the gorm graph
// store and manages its connection pool: limits, periodic health
// checks and transaction helpers with retry.
package database
