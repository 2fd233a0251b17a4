package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format writes a benchmark table in one file format.
type Format interface {
	Name() string
	Extension() string
	Write(w io.Writer, rows []Row, budgets []time.Duration) error
}

var formats = []Format{XLSX{}, CSV{}}

// ForPath picks the format matching the file extension of path.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats {
		if f.Extension() == ext {
			return f, nil
		}
	}
	return nil, fmt.Errorf("report: no format for extension %q", ext)
}

// WriteFile writes rows to path in the format its extension selects. A nil
// budgets slice means every budget present in rows.
func WriteFile(path string, rows []Row, budgets []time.Duration) error {
	f, err := ForPath(path)
	if err != nil {
		return err
	}
	if budgets == nil {
		budgets = Budgets(rows)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := f.Write(out, rows, budgets); err != nil {
		out.Close()
		return fmt.Errorf("report: write %s: %w", f.Name(), err)
	}
	return out.Close()
}
