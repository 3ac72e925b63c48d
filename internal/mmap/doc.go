// Package mmap provides anonymous memory mappings used to back the shared
// append buffer off-heap.
//
// An anonymous mapping keeps the multi-megabyte collection buffer out of the
// Go heap, so a long collection run does not inflate GC scan time. The
// mapping is private to the process; workers share it by sharing the
// *sharedbuf.Buffer that wraps it.
package mmap
