// Package source turns a probed input file into an immutable MediaSource:
// duration, video geometry and the ordered audio and subtitle inventories the
// command builder selects from.
package source
