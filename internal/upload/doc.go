// Package upload sequences one whole transfer: prompt, loader install,
// parameter setup, start, raw byte stream, completion.
//
// Ownership boundary:
// - the transfer phase machine and its two terminal outcomes
// - transport lifetime (opened before the first phase, closed on every
//   exit path)
// - payload padding and the word-count commitment
// - the raw-phase byte pump with its pacing and progress discipline
//
// A session is single-attempt. Whichever phase fails first ends it; the
// monitor's text protocol has no idempotent replay, so nothing retries.
package upload
