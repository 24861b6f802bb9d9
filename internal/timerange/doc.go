// Package timerange converts user-entered trim bounds into a TrimRange that
// always satisfies 0 <= Start < End <= duration.
//
// Malformed timecodes fail with a ValidationError of kind MalformedTime.
// Values that parse but are out of order or out of bounds are corrected
// deterministically by Correct: both bounds are clamped into the source
// duration, swapped when reversed, and separated by Epsilon when equal.
package timerange
