// Package session owns client session reliability settings.
//
// Ownership boundary:
// - connect/read/write deadlines
// - poll pacing and poll caps
// - acknowledgement strictness
package session
