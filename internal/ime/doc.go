// Package ime implements the composition state machine that turns short
// stroke codes into word candidates.
//
// # Model
//
// A Composition holds four pieces of state:
//
//	┌─────────────┬──────────────────────────────────────────────────────┐
//	│ Field       │ Meaning                                              │
//	├─────────────┼──────────────────────────────────────────────────────┤
//	│ code        │ up to MaxCodeLen lowercase letters or punctuation    │
//	│ candidates  │ dictionary result for code, in dictionary order      │
//	│ cursor      │ offset of the visible page, a multiple of PageSize   │
//	│ pending     │ candidate chosen by a shortcut or punctuation        │
//	└─────────────┴──────────────────────────────────────────────────────┘
//
// While a pending candidate is set the code is frozen: it is shown but the
// next confirm key delivers the pending candidate instead of the first one.
// Appending a literal clears it.
//
// # Shortcut letters
//
// The letters v, r, s, f and w double as selectors for the 2nd to 6th
// candidate of the current code. A shortcut letter is only treated as a
// selector when appending it would lead nowhere: the extended code is not in
// the dictionary, and either it already has the maximum length or no longer
// code starts with it. In every other case the letter is appended normally.
//
// # Punctuation
//
// Period and comma compose through the dictionary. With a code in progress
// the dictionary is asked for code+symbol. With an empty code the symbol
// starts a new code, so ".." and ".," can map to their own candidates.
//
// Composition is not safe for concurrent use. The dispatcher guards it with
// its own mutex and never holds that lock while text is delivered.
package ime
