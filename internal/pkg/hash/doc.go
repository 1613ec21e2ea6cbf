// Package hash provides helpers for keyed hashing of short secrets.
//
// Typical usage is deriving lookup keys from one-time credentials: store data
// under the HMAC of the credential so the plaintext never reaches the store,
// then verify user input by recomputing the HMAC in constant time.
package hash
