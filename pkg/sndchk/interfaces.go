package sndchk

import "github.com/accurasound/sndchk/pkg/sndchk/fingersum"

// StreamSource is the external decoder collaborator's interface (spec §6):
// a finite sequence of interleaved 16-bit signed LE stereo samples. Callers
// implement this over their own decoded-audio representation; the engine
// never decodes a container itself.
type StreamSource = fingersum.StreamSource

// Fingerprinter is the out-of-scope "fingerprint-library binding"
// collaborator (spec §1, §6). A real implementation wraps a Chromaprint
// binding the way demlo's fingerprint.go shells out to fpcalc.
type Fingerprinter = fingersum.Fingerprinter
