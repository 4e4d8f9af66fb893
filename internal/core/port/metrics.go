package port

// DirectoryMetrics records outcomes of directory operations.
type DirectoryMetrics interface {
	RecordOperation(operation, outcome string)
}
