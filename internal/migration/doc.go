// Package migration manages the SQL schema for the gorm graph store
// using golang-migrate. Migration files for each supported dialect
// (postgres, mysql, sqlite) are embedded, so the binary can migrate
// any configured database without external assets.
package migration
