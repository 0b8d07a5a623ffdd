// Package storage provides the persistence contracts for the delegated
// authorization engine.
//
// Three concerns are separated so backends can implement any subset:
//
//   - ClientStore: the client registry (id, secret hash, redirect targets)
//   - FlowStore: in-flight grants and single-use authorization codes
//   - TokenStore: records behind opaque token handles
//
// The FlowStore's RedeemAuthorizationCode is the concurrency-critical
// operation: lookup, expiry check, and deletion must form one critical
// section per code key so that a code can never be redeemed twice.
package storage
