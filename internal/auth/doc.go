// Package auth signs users in through Microsoft Entra or local credentials
// and carries the resulting Identity in a signed session cookie.
package auth
