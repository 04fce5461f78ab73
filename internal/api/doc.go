// Package api provides the signed Kalshi trade API client.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Every request carries RSA-PSS authentication headers (see internal/auth).
// Requests pass through a shared rate limiter and retry transient failures
// with exponential backoff.
package api
