// Package outcome classifies a supervisor.TerminalState into the result shown
// to users: success with the output path, cancellation, or a failure with a
// stable Kind and the few log lines that explain it.
//
// Classification is a pure function of the terminal state. Failure kinds come
// from the preflight/launch flags on the state first, then from an ordered
// table of log patterns; anything unmatched is Unknown. The table can be
// extended per Reporter.
package outcome
