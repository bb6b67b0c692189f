package ir

// Version constants for exported documents and the binary.
const (
	// ExportVersion is the version written into export documents.
	ExportVersion = "1.6.0"

	// Version is the snipd release version.
	Version = "0.1.0"
)
