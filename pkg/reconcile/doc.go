// Package reconcile implements the one client-side exception to server-only tier
// writes.
//
// A user who paid individually and then joins a group would otherwise see the
// group's free tier until the next server-side event. Reconciler watches the group
// id and, on the transition from no group to a group while the purchase SDK reports
// an active entitlement, writes the mapped tier once. Failures are logged and
// counted, never retried.
//
// Two devices of the same group reconciling at the same moment race; the last
// write wins.
package reconcile
