// Package security protects contact PII at rest.
//
// Values are sealed with AES-256-GCM into a versioned, colon-delimited
// envelope ("enc:v1:<iv>:<tag>:<ciphertext>", base64 parts) using a fresh
// nonce per call, so ciphertext is never comparable. Equality lookups go
// through LookupHash instead: an HMAC-SHA256 of the normalized email under a
// pepper that is separate from the encryption key.
//
// A Codec is built once at startup and never mutated. Changing the key or
// envelope format requires a rekey pass over stored data.
package security
