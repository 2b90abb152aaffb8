// Package splitar implements a tar-aware multi-volume archive splitter: it
// reads a single tar stream and writes it out as a sequence of numbered
// volumes, each bounded by a configured maximum size, each independently
// extractable when directory recreation is enabled.
package splitar

// BlockSize is the fixed size of a tar header or payload block. Every
// header and every payload is a whole number of blocks; short payloads are
// zero-padded up to the next block boundary.
const BlockSize = 512

// DefaultSuffixLength is the width of the zero-padded decimal volume index
// used when the caller does not override it.
const DefaultSuffixLength = 5
