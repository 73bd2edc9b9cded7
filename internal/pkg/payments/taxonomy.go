package payments

import "github.com/beatmarkt/BeatMarkt/internal/pkg/errs"

// terminal holds the business violations that redelivery can never fix. An
// event failing with one of these is marked processed with the error stored;
// anything else is treated as transient and released for redelivery.
var terminal = []error{
	errs.ErrMissingEventData,
	errs.ErrBeatUnavailable,
	errs.ErrLicenseIncompatible,
	errs.ErrAccountUnresolved,
}

// IsTerminal classifies a processing error. The default is transient:
// unknown failures get redelivered rather than silently swallowed.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	for _, t := range terminal {
		if errs.Is(err, t) {
			return true
		}
	}
	return false
}
