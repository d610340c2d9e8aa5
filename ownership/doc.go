// Package ownership implements the single-owner state machine shared by a
// backend handle and the proxy bound to it.
//
// A pair moves through these states:
//
//	Unconstructed ──factory──▶ AbstractOnly ──bind──▶ ProxyOwned ──close──▶ Released
//	                                │                    │
//	                                │adopt               │backend release: violation
//	                                ▼                    │
//	                           AbstractOwned ──backend release──▶ Released
//
// The state lives in one atomic word and every transition is a
// compare-and-swap, so a proxy close racing a backend release releases the
// handle exactly once. Transitions not in the table are ownership
// violations; they panic with an *errors.Error of KindOwnershipViolation.
package ownership
