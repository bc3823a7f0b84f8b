// Package storefront contains the shared primitives of the storefront
// microservices: typed errors, UUIDs, serialization, logging setup, retry and
// environment configuration. The services themselves live in the ids, stock,
// payment and order packages; the write-ahead log and recovery sweeper live in
// the wal package.
package storefront
