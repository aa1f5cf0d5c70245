// Package protocol extracts KERI messages and their attachments from a byte
// stream.
//
// Ownership boundary:
// - version string smelling and body framing
// - attachment group and counter parsing
// - indexed signature material
// - a buffering Reader that applies the recovery policy per error kind
//
// Every failure is a kering occurrence from the ExtractionError or
// MaterialError branches.
package protocol
