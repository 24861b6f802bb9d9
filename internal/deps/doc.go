// Package deps resolves and reports the external media tools Clipper drives.
package deps
