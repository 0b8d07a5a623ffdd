// Package valkey provides a Valkey storage backend for the delegate library.
//
// Valkey is a high-performance key-value store that is wire-compatible with
// Redis. This package implements all storage interfaces required by the
// delegation engine, making it suitable for deployments that require:
//
//   - Distributed storage for horizontal scaling
//   - Persistence across server restarts
//   - Automatic TTL-based expiration
//
// # Implemented Interfaces
//
// The Store type implements all required storage interfaces:
//
//   - [storage.ClientStore]: client registrations and secret validation
//   - [storage.FlowStore]: grants and single-use authorization codes
//   - [storage.TokenStore]: token records for opaque handles
//
// # Key Schema
//
// All keys use a configurable prefix (default "delegate:") to avoid
// conflicts with other applications sharing the same Valkey instance:
//
//	{prefix}client:{clientID} -> JSON(Client)
//	{prefix}grant:{grantID}   -> JSON(Grant), TTL to grant expiry
//	{prefix}code:{code}       -> JSON(AuthorizationCode), TTL to code expiry
//	{prefix}token:{handle}    -> JSON(TokenRecord), TTL to token expiry
//
// # Atomic Operations
//
// RedeemAuthorizationCode uses GETDEL so lookup and deletion happen in one
// server-side operation. Concurrent redemptions of the same code yield
// exactly one success, matching the in-memory implementation.
//
// # Configuration
//
// Basic usage:
//
//	store, err := valkey.New(valkey.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "delegate:",
//	})
//
// # Security Considerations
//
//   - All flow keys carry TTLs to prevent unbounded growth
//   - Constant-time bcrypt comparison prevents timing attacks in client validation
//   - TLS support enables encrypted connections to Valkey servers
//   - Optional encryption at rest of principal identifiers via SetEncryptor()
package valkey
