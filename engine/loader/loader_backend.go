package loader

import (
	"io"
)

// loaderBackend defines the generic interface for reading mesh data from files or streams.
// Concrete implementations (e.g., objLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load reads mesh data from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *MeshData: the parsed mesh
	//   - error: error if the file cannot be opened or parsed
	Load(path string) (*MeshData, error)

	// LoadReader reads mesh data from a stream.
	//
	// Parameters:
	//   - r: the reader providing the file contents
	//
	// Returns:
	//   - *MeshData: the parsed mesh
	//   - error: error if parsing fails
	LoadReader(r io.Reader) (*MeshData, error)
}
