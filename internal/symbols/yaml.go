package symbols

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DataFile is the YAML layout of an external data file.
//
//	sets:
//	  - name: i
//	    records: [[i1], [i2], [i3]]
//	parameters:
//	  - name: w
//	    dim: 1
//	    records: [{index: [i1], value: 2.5}]
//	variables:
//	  - name: x
//	    domain: [i]
type DataFile struct {
	Sets       []SetData   `yaml:"sets"`
	Parameters []ParamData `yaml:"parameters"`
	Variables  []RowData   `yaml:"variables"`
	Equations  []RowData   `yaml:"equations"`
}

// SetData describes one set. Elements is a shorthand for a
// one-dimensional set.
type SetData struct {
	Name     string     `yaml:"name"`
	Dim      int        `yaml:"dim,omitempty"`
	Elements []string   `yaml:"elements,omitempty"`
	Records  [][]string `yaml:"records,omitempty"`
}

// ParamData describes a parameter; Value alone defines a scalar.
type ParamData struct {
	Name    string        `yaml:"name"`
	Dim     int           `yaml:"dim,omitempty"`
	Value   *float64      `yaml:"value,omitempty"`
	Records []ParamRecord `yaml:"records,omitempty"`
}

// ParamRecord is one parameter value.
type ParamRecord struct {
	Index []string `yaml:"index"`
	Value float64  `yaml:"value"`
}

// RowData describes a variable or equation. Domain expands to the
// cartesian product of the named sets; otherwise Records is used as is.
type RowData struct {
	Name    string     `yaml:"name"`
	Dim     int        `yaml:"dim,omitempty"`
	Domain  []string   `yaml:"domain,omitempty"`
	Records [][]string `yaml:"records,omitempty"`
}

// LoadYAML reads a YAML data file into s.
func LoadYAML(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseYAML(s, data, path)
}

// ParseYAML merges YAML data into s. path is used for error messages only.
func ParseYAML(s *Store, data []byte, path string) error {
	var file DataFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file.apply(s)
}

func (f *DataFile) apply(s *Store) error {
	for _, set := range f.Sets {
		records := set.Records
		dim := set.Dim
		if len(set.Elements) > 0 {
			for _, el := range set.Elements {
				records = append(records, []string{el})
			}
			if dim == 0 {
				dim = 1
			}
		}
		if dim == 0 && len(records) > 0 {
			dim = len(records[0])
		}
		if _, err := s.AddSet(set.Name, dim, records); err != nil {
			return err
		}
	}

	for _, p := range f.Parameters {
		if p.Value != nil {
			if _, err := s.AddScalar(p.Name, *p.Value); err != nil {
				return err
			}
			continue
		}
		dim := p.Dim
		if dim == 0 && len(p.Records) > 0 {
			dim = len(p.Records[0].Index)
		}
		records := make([][]string, len(p.Records))
		values := make([]float64, len(p.Records))
		for i, r := range p.Records {
			records[i] = r.Index
			values[i] = r.Value
		}
		if _, err := s.AddParam(p.Name, dim, records, values); err != nil {
			return err
		}
	}

	for _, v := range f.Variables {
		if err := addRowData(s, KindVar, v); err != nil {
			return err
		}
	}
	for _, e := range f.Equations {
		if err := addRowData(s, KindEqu, e); err != nil {
			return err
		}
	}
	return nil
}

func addRowData(s *Store, kind Kind, r RowData) error {
	records := r.Records
	dim := r.Dim
	if len(r.Domain) > 0 {
		expanded, err := s.Domain(r.Domain...)
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, r.Name, err)
		}
		records = expanded
		dim = len(r.Domain)
	} else if dim == 0 && len(records) > 0 {
		dim = len(records[0])
	}
	var err error
	if kind == KindVar {
		_, err = s.AddVar(r.Name, dim, records)
	} else {
		_, err = s.AddEqu(r.Name, dim, records)
	}
	return err
}
