// Package analysis annotates x86 listings: branch targets are resolved to
// demangled symbol names and data references to the strings they point at.
package analysis

const (
	// MaxStringLength bounds string recovery at a referenced address.
	MaxStringLength = 256

	// MinStringLength is the shortest run reported as a string.
	MinStringLength = 3

	// MaxFunctionInstructions bounds the listing of a single function.
	MaxFunctionInstructions = 4096
)
