// Package textutil provides filename sanitization and display helpers for
// stream metadata.
package textutil
