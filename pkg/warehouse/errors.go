package warehouse

import "errors"

// ErrNotFound is returned by single-row fetches that found nothing. Callers
// translate this into the selector's "exit" / aggregator's "absent" paths —
// it is never itself a failure.
var ErrNotFound = errors.New("warehouse: not found")
