// Package template manages reusable email templates and seeds the built-in
// starter set on first listing.
package template
