// Package contact manages contacts and their group memberships.
//
// Contact fields are encrypted before they reach the Repository and
// decrypted on the way out; repositories only ever see envelopes and the
// lookup hash. Save upserts by lookup hash so the same address entered twice
// maps to one contact. Rekey rewrites rows that predate encryption or whose
// hash was computed under a different pepper.
package contact
