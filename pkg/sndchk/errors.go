package sndchk

import "github.com/accurasound/sndchk/pkg/sndchk/sndchkerr"

// Fatal reports whether err must abort Run entirely rather than being
// tolerated for a single stream, disc, or release (spec §7: resource
// exhaustion or a clock failure). Run itself already applies this
// distinction internally; it's exported so a caller embedding Run in a
// longer-lived process can decide whether to keep going after a non-nil
// return.
func Fatal(err error) bool { return sndchkerr.Fatal(err) }
