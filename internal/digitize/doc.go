// Package digitize turns raw problem input into text the parser can work
// on, and learns substitution patterns from human corrections so the same
// digitization mistake is fixed automatically next time.
//
// Only the text source is implemented here; image (OCR) and audio (ASR)
// inputs satisfy the same contract but need an external engine plugged in.
// Text passes through at full confidence after whitespace normalization and
// pattern application.
package digitize
