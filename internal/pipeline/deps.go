package pipeline

import "os"

// fileReader loads a whole file into memory.
type fileReader interface {
	ReadFile(name string) ([]byte, error)
}

// fileStatter retrieves file information.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

// --- Default implementations using real OS functions ---

type osFileReader struct{}

func (osFileReader) ReadFile(name string) ([]byte, error) {
	// #nosec G304 -- name is a scratch path produced by this process
	return os.ReadFile(name)
}

type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}
