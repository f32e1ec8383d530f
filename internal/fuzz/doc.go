// Package fuzztests houses Go fuzz harnesses for the lowering inputs: encoded
// MIR units and target descriptions. Decoding, validation and lowering must
// reject bad input with an error and never panic or hang.
package fuzztests
