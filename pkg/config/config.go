// Package config holds the master's own tunables: PDU/mailbox/state
// timeouts and DC/retry behaviour, loadable from an INI file.
package config

import "time"

// Timeouts holds the configured wait bounds; each field says whether
// the runtime reads it. Zero values are invalid; DefaultConfig fills
// in the values the original implementation uses.
type Timeouts struct {
	// Pdu is the configured bound for a single PDU round trip (alloc ->
	// push -> await). No package in this module reads it: PDU round
	// trips are bounded only by the context passed to each call.
	Pdu time.Duration
	// StateTransition bounds waiting for a group or device AL state
	// change to be reported.
	StateTransition time.Duration
	// MailboxEcho is the configured bound for waiting on a mailbox Sync
	// Manager to report empty/ready before a request is sent. pkg/mailbox
	// does not read it; its waits are bounded by mailbox.ResponseTimeout.
	MailboxEcho time.Duration
	// WaitLoopDelay is the polling tick between state/mailbox busy
	// checks.
	WaitLoopDelay time.Duration
	// MailboxResponse is the configured bound for waiting on a mailbox
	// response once a request has been sent. pkg/mailbox does not read
	// it; its waits are bounded by mailbox.ResponseTimeout.
	MailboxResponse time.Duration
}

// Config is the full set of runtime tunables a MainDevice is built
// with.
type Config struct {
	Timeouts Timeouts

	// DcStaticSyncIterations is the number of FRMW passes performed
	// during static drift compensation.
	DcStaticSyncIterations int
	// RetryBehaviour is the configured retry count for a send-then-wait
	// PDU operation. No package in this module reads it, and PDU sends
	// are not retried.
	RetryBehaviour int
}

// DefaultConfig returns the tunables used when no INI file is
// supplied: conservative enough for a handful of devices on a
// switched Ethernet segment.
func DefaultConfig() Config {
	return Config{
		Timeouts: Timeouts{
			Pdu:             2 * time.Millisecond,
			StateTransition: 2 * time.Second,
			MailboxEcho:     100 * time.Millisecond,
			WaitLoopDelay:   time.Millisecond,
			MailboxResponse: 100 * time.Millisecond,
		},
		DcStaticSyncIterations: 500,
		RetryBehaviour:         3,
	}
}
