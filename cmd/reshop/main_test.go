package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const dataFile = `sets:
  - name: i
    elements: [i1, i2, i3]
variables:
  - name: z
  - name: x
    domain: [i]
`

// writeModel lays out a model directory with a data file and returns the
// model path.
func writeModel(t *testing.T, src string, conf string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"data.yaml": dataFile, "model.emp": src}
	if conf != "" {
		files["reshop.yaml"] = conf
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "model.emp")
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		wantErr string
	}{
		{"default_run", []string{"m.emp"}, "run", ""},
		{"command", []string{"disasm", "m.emp"}, "disasm", ""},
		{"inline_value", []string{"--mode=embedded", "m.emp"}, "run", ""},
		{"help", []string{"--help"}, "help", ""},
		{"missing_file", []string{"check"}, "", "no model file"},
		{"missing_value", []string{"m.emp", "--data"}, "", "--data needs a value"},
		{"unknown_flag", []string{"--fast", "m.emp"}, "", "unknown flag"},
		{"two_files", []string{"a.emp", "b.emp"}, "", "only one model file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseArgs(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if a.command != tt.command {
				t.Errorf("command = %s, want %s", a.command, tt.command)
			}
		})
	}
}

func TestRunPrintsGraph(t *testing.T) {
	path := writeModel(t, "load 'data.yaml'\nloop(i, n(i): min z x(i))\ntop: min z n('i1') n('i2') n('i3')\n", "")
	code, out, errOut := runCLI(path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"# model ", "n(i1)", "root top"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestConfigFileIsFound(t *testing.T) {
	path := writeModel(t, "min z x('i1')\n", "data: [data.yaml]\nmode: embedded\n")
	code, out, errOut := runCLI("check", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "1 nodes, 0 edges") {
		t.Errorf("output = %q", out)
	}
}

func TestDiagnosticsAreRendered(t *testing.T) {
	path := writeModel(t, "a: min z x('i1')\nb: min z x('i2')\n", "")
	code, _, errOut := runCLI("--data", filepath.Join(filepath.Dir(path), "data.yaml"), "--color", "never", path)
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(errOut, "2 root candidates") || strings.Contains(errOut, "\033[") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestJournalIsModeIndependent(t *testing.T) {
	path := writeModel(t, "load 'data.yaml'\nc: min z x('i1')\ntop: min z x('i2') c\n", "")
	_, auto, _ := runCLI("--journal", path)
	_, embedded, _ := runCLI("--journal", "--mode", "embedded", path)
	if auto == "" || auto != embedded {
		t.Errorf("journals differ:\n%s\n---\n%s", auto, embedded)
	}
}

func TestFmtAndDisasm(t *testing.T) {
	path := writeModel(t, "load 'data.yaml'\nloop(i, n(i): min z x(i))", "")
	code, out, errOut := runCLI("fmt", path)
	if code != 0 || !strings.Contains(out, "loop(i,\n    n(i): min z x(i);\n)") {
		t.Errorf("fmt exit %d:\n%s%s", code, out, errOut)
	}
	code, out, errOut = runCLI("disasm", path)
	if code != 0 || !strings.Contains(out, "== loop ==") {
		t.Errorf("disasm exit %d:\n%s%s", code, out, errOut)
	}
}
