// Package seed loads the synthetic data used to populate demo domains.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/ahrav/operino-hub/internal/domain/patient"
	"github.com/ahrav/operino-hub/pkg/common/logger"
)

// PatientFile returns the bundled path of the n-th patient list, 1-based.
func PatientFile(n int) string { return fmt.Sprintf("patients/patients%d.csv", n) }

// Loader reads header-driven CSV patient lists.
type Loader struct {
	files  fs.FS
	logger *logger.Logger
}

// NewLoader creates a loader over the bundled resources.
func NewLoader(files fs.FS, log *logger.Logger) *Loader {
	return &Loader{files: files, logger: log.Named("seed_loader")}
}

// Load reads the first count patient files in order. A file that fails to
// load is logged and contributes no patients.
func (l *Loader) Load(ctx context.Context, count int) []patient.Patient {
	var patients []patient.Patient
	for i := 1; i <= count; i++ {
		name := PatientFile(i)
		ps, err := l.LoadFile(name)
		if err != nil {
			l.logger.Error(ctx, "skipping patient file", "file", name, "error", err)
			continue
		}
		patients = append(patients, ps...)
		l.logger.Info(ctx, "loaded patients", "file", name, "count", len(ps), "total", len(patients))
	}
	l.logger.Info(ctx, "patient seed data loaded", "total", len(patients))
	return patients
}

// LoadFile parses a single file. Any malformed row fails the whole file with
// a *SeedLoadError.
func (l *Loader) LoadFile(name string) ([]patient.Patient, error) {
	f, err := l.files.Open(name)
	if err != nil {
		return nil, &SeedLoadError{File: name, Err: err}
	}
	defer f.Close()

	ps, err := parse(f)
	if err != nil {
		return nil, &SeedLoadError{File: name, Err: err}
	}
	return ps, nil
}

func parse(r io.Reader) ([]patient.Patient, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var patients []patient.Patient
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return patients, nil
		}
		if err != nil {
			return nil, err
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = strings.TrimSpace(rec[i])
		}

		var p patient.Patient
		if err := mapstructure.Decode(row, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.NHSNumber == "" {
			return nil, fmt.Errorf("line %d: missing nhsNumber", line)
		}
		patients = append(patients, p)
	}
}
