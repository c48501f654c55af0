package config

import "strings"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".emp", ".empinfo", ".dag"}

// TrimSourceExt removes a recognized source extension from a file name.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// Data file extensions accepted by the load statement and the --data flag
var (
	YAMLDataExtensions   = []string{".yaml", ".yml"}
	SQLiteDataExtensions = []string{".db", ".sqlite", ".sqlite3"}
)

// Compiler and VM limits
const (
	// MaxIndexDims is the largest number of index positions in a label or
	// symbol reference, and the largest number of simultaneously open loop
	// dimensions.
	MaxIndexDims = 20

	// MaxLocals is the capacity of the local-variable slot table.
	MaxLocals = 64

	// StackSize is the capacity of the VM operand stack.
	StackSize = 256

	// MaxGlobals is bounded by the 16-bit global operand.
	MaxGlobals = 1 << 16

	// MaxJump is bounded by the signed 16-bit jump operand.
	MaxJump = 1<<15 - 1
)

// Default configuration file names, searched from the source directory up
var ConfigFileNames = []string{"reshop.yaml", "reshop.yml"}
