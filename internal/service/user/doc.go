// Package user manages application accounts and their local passwords.
package user
