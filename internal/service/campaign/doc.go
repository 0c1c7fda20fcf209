// Package campaign implements campaign creation, dispatch and scheduling.
//
// The Dispatcher runs one campaign send front to back: it loads the target
// group's current members, resolves attachments once, replaces the
// campaign's recipient rows, delivers to each member with optional pacing,
// and sends an optional failure report. A per-campaign lock from
// distlock.Locker keeps two dispatches of the same campaign from
// interleaving. The Scheduler sweeps due scheduled campaigns into the
// Dispatcher, either on demand or from a ticker loop.
//
// Repository implementations live in repository/postgres/.
package campaign
