package sharedstorage

// StorageError is a custom error type for shared storage errors
type StorageError string

// Error implements the error interface
func (e StorageError) Error() string {
	return string(e)
}

// Define errors
const (
	ErrNilConfig      StorageError = "config cannot be nil"
	ErrNilStore       StorageError = "store cannot be nil"
	ErrNilInput       StorageError = "input cannot be nil"
	ErrEmptyGameID    StorageError = "game ID cannot be empty"
	ErrReservedGameID StorageError = "game ID is reserved"
	ErrEmptyID        StorageError = "ID cannot be empty"
	ErrWriteFailed    StorageError = "failed to persist to shared storage"
)
