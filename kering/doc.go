// Package kering owns the failure vocabulary and protocol-wide constants of
// the KERI stack.
//
// Ownership boundary:
// - the error kind tree rooted at ErrKeri
// - the Error occurrence type carried up the call chain
// - version, scheme, role, truthy/falsy and separator constants
//
// Kinds are matched by ancestry, so callers may catch at any level:
//
//	if errors.Is(err, kering.ErrShortage) {
//		// wait for more bytes
//	} else if errors.Is(err, kering.ErrExtraction) {
//		// resynchronize
//	}
package kering
