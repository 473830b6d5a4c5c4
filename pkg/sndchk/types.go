package sndchk

import "github.com/accurasound/sndchk/pkg/sndchk/reduce"

// Input is one decoded audio file handed to Run: its sample source and the
// tags already embedded in the file (used by the §4.6.8 metadata-distance
// pass, not trusted for identification).
type Input struct {
	Source StreamSource
	Tags   reduce.Tags
}
