// Package consent drives privacy consent acquisition ahead of any ad request.
//
// The flow is a small state machine:
//
//	NotChecked -> Checking -> Obtained | NotRequired | Denied
//
// Retry forces any settled state back to Checking. Only Obtained and NotRequired
// authorize ad SDK initialization; SDK errors and declines fail closed.
//
// Manager refuses to start while its Gate reports that identity and tier are
// still resolving, and collapses concurrent calls into the flow already running.
package consent
