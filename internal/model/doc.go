// Package model defines shared data types used across the trader.
//
// Conventions:
//   - Money and prices: integer cents. Contract face value is 100 cents.
//   - Timestamps: time.Time in Go, TIMESTAMPTZ in the database.
//   - IDs: string tickers, uuid.UUID client order tokens, int64 row ids.
package model
