package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes calc with a config file that keeps history in a temporary
// directory.
func run(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	dir := t.TempDir()
	conf := filepath.Join(dir, "calc.yaml")
	src := "history:\n  path: " + filepath.Join(dir, "history.jsonl") + "\n"
	if err := os.WriteFile(conf, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return runConfig(t, conf, stdin, args...)
}

func runConfig(t *testing.T, conf, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var o, e bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", conf}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&o)
	root.SetErr(&e)
	err = root.Execute()
	return o.String(), e.String(), err
}

func TestEvalArgs(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
		err  bool
	}{
		{"single", []string{"eval", "2+3*4"}, "14\n", false},
		{"ordered", []string{"eval", "1", "2", "3", "4", "5"}, "1\n2\n3\n4\n5\n", false},
		{"display", []string{"eval", "2 pi", "1/0", "0.1+0.2"}, "6.2831853072\nInf\n0.3\n", false},
		{"raw", []string{"eval", "--raw", "0.1+0.2"}, "0.30000000000000004\n", false},
		{"fmt", []string{"eval", "--fmt", "%.3f", "pi"}, "3.142\n", false},
		{"given", []string{"eval", "--given", "r=3", "--given", "d=2r", "d", "pi r^2 / pi"}, "6\n9\n", false},
		{"preview", []string{"eval", "--preview", "2*3+"}, "6\n", false},
		{"echo", []string{"eval", "--echo", "1+2"}, "([1] + [2]) : 3\n", false},
		{"error", []string{"eval", "1", "2+", "3"}, "1\n3\n", true},
		{"conflict", []string{"eval", "--raw", "--fmt", "%g", "1"}, "", true},
		{"badgiven", []string{"eval", "--given", "r", "1"}, "", true},
		{"badname", []string{"eval", "--given", "2r=1", "1"}, "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, _, err := run(t, "", c.args...)
			if (err != nil) != c.err {
				t.Errorf("wrong error: %v", err)
			}
			if got != c.want {
				t.Errorf("want output %q, got %q", c.want, got)
			}
		})
	}
}

func TestEvalStdin(t *testing.T) {
	cases := []struct {
		name  string
		stdin string
		args  []string
		want  string
		err   bool
	}{
		{"whole", "1 +\n 2\n", []string{"eval"}, "3\n", false},
		{"lines", "1+1\n\n2^10\n", []string{"eval", "-n"}, "2\n1024\n", false},
		{"continued", "2+\n3\n", []string{"eval", "-n"}, "5\n", false},
		{"dash", "7", []string{"eval", "--in", "-", "1"}, "7\n1\n", false},
		{"bad", "1\n2)\n3\n", []string{"eval", "-n"}, "1\n", true},
		{"empty", "", []string{"eval"}, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, _, err := run(t, c.stdin, c.args...)
			if (err != nil) != c.err {
				t.Errorf("wrong error: %v", err)
			}
			if got != c.want {
				t.Errorf("want output %q, got %q", c.want, got)
			}
		})
	}
}

func TestEvalFile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "exprs.txt")
	if err := os.WriteFile(in, []byte("sqrt 16\nmax(1, 5, 3)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, _, err := run(t, "", "eval", "-n", "--in", in)
	if err != nil {
		t.Fatal(err)
	}
	if got != "4\n5\n" {
		t.Errorf("want 4 and 5, got %q", got)
	}
	if _, _, err := run(t, "", "eval", "--in", in+".missing"); err == nil {
		t.Error("missing input file should fail")
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "calc.yaml")
	src := "history:\n  path: " + filepath.Join(dir, "history.jsonl") + "\n"
	if err := os.WriteFile(conf, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runConfig(t, conf, "", "eval", "6*7", "1/"); err == nil {
		t.Error("expected failure from 1/")
	}
	if _, _, err := runConfig(t, conf, "", "eval", "--no-history", "1+1"); err != nil {
		t.Fatal(err)
	}
	got, _, err := runConfig(t, conf, "", "history")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 history lines, got %q", got)
	}
	if !strings.HasSuffix(lines[0], "6*7 = 42") {
		t.Errorf("wrong first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "1/  error: ") {
		t.Errorf("wrong second line %q", lines[1])
	}

	got, _, err = runConfig(t, conf, "", "history", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"expr":"6*7","result":42,"display":"42"`) {
		t.Errorf("wrong json history %q", got)
	}

	if _, _, err := runConfig(t, conf, "", "history", "--clear"); err != nil {
		t.Fatal(err)
	}
	got, _, err = runConfig(t, conf, "", "history")
	if err != nil || got != "" {
		t.Errorf("cleared history: want empty, got %q (%v)", got, err)
	}
}

func TestHistoryDisabled(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "calc.yaml")
	hist := filepath.Join(dir, "history.jsonl")
	src := "history:\n  enabled: false\n  path: " + hist + "\n"
	if err := os.WriteFile(conf, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runConfig(t, conf, "", "eval", "1+1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(hist); !os.IsNotExist(err) {
		t.Errorf("history written while disabled: %v", err)
	}
}

func TestLogFlags(t *testing.T) {
	_, stderr, err := run(t, "", "--log-level", "debug", "--log-format", "json", "eval", "1+1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, `"msg":"evaluated"`) {
		t.Errorf("debug json log missing evaluation record: %q", stderr)
	}
	if _, _, err := run(t, "", "--log-level", "loud", "eval", "1"); err == nil {
		t.Error("invalid log level should fail")
	}
}

func TestBadConfig(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "calc.yaml")
	if err := os.WriteFile(conf, []byte("parse: {max_depth: -1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runConfig(t, conf, "", "eval", "1"); err == nil {
		t.Error("invalid config should fail")
	}
}

func TestVersion(t *testing.T) {
	got, _, err := run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if got != "calc version "+version+"\n" {
		t.Errorf("wrong version output %q", got)
	}
}
