package conformance_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xhub/reshop-sub001/internal/conformance"
)

func TestFixtures(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no fixtures found")
	}
	for _, file := range files {
		suite, err := conformance.Load(file)
		if err != nil {
			t.Fatal(err)
		}
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			for _, c := range suite.Cases {
				c := c
				t.Run(c.Name, func(t *testing.T) {
					for _, mode := range c.ModesOf() {
						dict, err := suite.Dictionary()
						if err != nil {
							t.Fatal(err)
						}
						ctx := c.Run(dict, mode)
						for _, problem := range c.Expect.Check(ctx) {
							t.Errorf("%s: %s", mode, problem)
						}
					}
				})
			}
		})
	}
}

// Both execution paths must drive the model API identically.
func TestJournalsAgree(t *testing.T) {
	suite, err := conformance.Load(filepath.Join("testdata", "properties.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range suite.Cases {
		if len(c.Expect.Errors) > 0 {
			continue
		}
		t.Run(c.Name, func(t *testing.T) {
			var journals [2]string
			for i, mode := range c.ModesOf() {
				dict, err := suite.Dictionary()
				if err != nil {
					t.Fatal(err)
				}
				ctx := c.Run(dict, mode)
				if err := ctx.Err(); err != nil {
					t.Fatalf("%s: %v", mode, err)
				}
				journals[i] = strings.Join(ctx.Session.Graph.Journal, "\n")
			}
			if journals[0] != journals[1] {
				t.Errorf("journals differ:\n%s\n---\n%s", journals[0], journals[1])
			}
		})
	}
}
