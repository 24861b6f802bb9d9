// Package verify decodes a finished clip to confirm it is a playable video
// before a job is reported as succeeded.
package verify
