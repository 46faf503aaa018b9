// Package editor is the single owner of a Flow being authored.
//
// Every edit produces a new immutable revision of the flow and notifies
// subscribers with it. Panels that only read the flow (validation, preview,
// graph export) subscribe instead of sharing a mutable graph. Save is gated
// by validator.ValidateFlow; a rejected save leaves the flow untouched and
// exposes the error through SaveError for a fixed display time.
package editor
