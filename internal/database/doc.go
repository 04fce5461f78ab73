// Package database manages the PostgreSQL connection pool.
//
// The trader keeps batches, orders, and probability audit rows in a single
// Postgres database; pool sizing comes from configuration.
package database
