package errs

// Sentinel errors shared across feature packages. Handlers translate these
// into HTTP codes; webhook processing uses them to decide whether an event
// is terminally failed or should be redelivered.
var (
	// ErrEventUnverifiable marks webhook requests whose signature or payload
	// cannot be authenticated. Such requests are rejected before any write.
	ErrEventUnverifiable = New("event unverifiable")

	// ErrMissingEventData marks a verified event whose payload lacks fields
	// required for processing. Terminal.
	ErrMissingEventData = New("event data missing required fields")

	// ErrBeatUnavailable marks completion attempts against a beat that is
	// already sold or archived. Terminal.
	ErrBeatUnavailable = New("beat no longer available")

	// ErrLicenseIncompatible marks a resolved license that does not permit
	// the requested exclusivity. Terminal.
	ErrLicenseIncompatible = New("license incompatible with requested exclusivity")

	// ErrLockHeld means another buyer currently holds the beat lock.
	ErrLockHeld = New("beat locked by another checkout")

	// ErrAccountUnresolved means no local account could be tied to the
	// subscription event through any resolution step. Terminal.
	ErrAccountUnresolved = New("no account resolved for subscription event")

	// ErrLeaseHeld means another worker holds the processing lease. Normal
	// contention, not a failure.
	ErrLeaseHeld = New("processing lease held elsewhere")

	// ErrUnifiedCompletionUnavailable means the database is missing the
	// completion procedure (schema older than the binary).
	ErrUnifiedCompletionUnavailable = New("unified completion procedure unavailable")
)
