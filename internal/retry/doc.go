// Package retry implements the four-stage escalation ladder for failed
// conversion attempts: plain retry, encoder family switch, quality
// coarsening, and a maximally conservative final attempt, with exponential
// backoff between attempts.
package retry
