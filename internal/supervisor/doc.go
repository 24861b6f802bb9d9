// Package supervisor runs one external encoder process at a time and turns
// its stderr into an ordered event stream.
//
// A job moves Pending -> Running -> Succeeded | Failed | Cancelled. Submit
// returns a *BusyError while another job is active. Each Handle records its
// events with increasing sequence numbers; consumers either stream them
// (Events, Subscribe) or poll without blocking (EventsSince). Progress
// events never decrease and stop as soon as a cancel is requested; the
// terminal event is always last.
//
// Cancellation sends SIGTERM to the encoder's process group and escalates to
// SIGKILL after the configured grace period. Partial output from failed or
// cancelled jobs is deleted before the terminal event is recorded.
//
// Process creation sits behind the Launcher interface so tests can replay
// canned stderr and exit codes without a real ffmpeg binary.
package supervisor
