// Package native is the cgo boundary to libbddisasm.
//
// Every result crosses the boundary as a flat record laid out by
// internal/record. The native INSTRUX itself is carried as an opaque byte
// blob and only ever interpreted on the C side.
package native
