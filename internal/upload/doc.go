// Package upload posts finished clips to anonymous file hosts (catbox,
// uguu, temp.sh) and returns the public link.
//
// Uploads are streamed as multipart forms, size-checked against each host's
// limit before any network traffic, and retried with exponential backoff on
// network errors and 408/429/5xx responses. Failures surface as *Error with
// a stable ErrorKind so callers can render them without string matching.
package upload
