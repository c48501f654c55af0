package symbols

import (
	"fmt"

	"github.com/xhub/reshop-sub001/internal/config"
)

// LoadFile merges a data file into s, choosing the loader by extension.
func LoadFile(s *Store, path string) error {
	switch {
	case config.IsYAMLData(path):
		return LoadYAML(s, path)
	case config.IsSQLiteData(path):
		return LoadSQLite(s, path)
	}
	return fmt.Errorf("%s: unsupported data file (want %v or %v)", path,
		config.YAMLDataExtensions, config.SQLiteDataExtensions)
}
