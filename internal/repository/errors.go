package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate record")
	// ErrStateConflict indicates a conditional update matched no record in the expected state.
	ErrStateConflict = errors.New("repository: state conflict")
)
