package seed

import "fmt"

// SeedLoadError reports a patient file that could not be read or parsed.
// No patients are taken from such a file.
type SeedLoadError struct {
	File string
	Err  error
}

func (e *SeedLoadError) Error() string {
	return fmt.Sprintf("failed to load patients from %s: %v", e.File, e.Err)
}

func (e *SeedLoadError) Unwrap() error { return e.Err }
