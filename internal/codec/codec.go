// Package codec converts the device inventory to and from external file
// formats (JSON, YAML and Ansible inventory).
package codec

import (
	"fmt"
	"io"
	"sort"

	"lanwatch/internal/domain"
)

// Importer reads device records from an external format. Returned records
// are unvalidated; the caller normalizes and checks them.
type Importer interface {
	Parse(r io.Reader) ([]domain.Device, error)
	Format() string
}

// Exporter writes device records to an external format
type Exporter interface {
	Export(devices []domain.Device, w io.Writer) error
	Format() string
	ContentType() string
}

var (
	exporters = map[string]Exporter{
		"json":    &JSONCodec{},
		"yaml":    &YAMLCodec{},
		"ansible": &AnsibleCodec{},
	}
	importers = map[string]Importer{
		"json":    &JSONCodec{},
		"yaml":    &YAMLCodec{},
		"ansible": &AnsibleCodec{},
	}
)

// ExporterFor returns the exporter registered for format
func ExporterFor(format string) (Exporter, error) {
	e, ok := exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q (supported: %v)", format, Formats())
	}
	return e, nil
}

// ImporterFor returns the importer registered for format
func ImporterFor(format string) (Importer, error) {
	i, ok := importers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported import format %q (supported: %v)", format, Formats())
	}
	return i, nil
}

// Formats lists the registered format names
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
