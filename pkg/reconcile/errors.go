package reconcile

import "errors"

// ErrWrite marks a failed reconciliation write. It is logged and counted only:
// the server-side writer corrects the tier eventually.
var ErrWrite = errors.New("reconcile: tier write failed")
