// Package group manages contact groups and group membership.
//
// Deleting a group either deletes its member contacts or moves them into the
// default group, creating it on demand. Either way the whole operation runs
// inside one Repository transaction.
package group
