// Package database provides PostgreSQL connection pool management for the
// parameter registry.
package database
