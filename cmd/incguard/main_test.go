// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"golang.org/x/tools/txtar"

	"go.astrophena.name/incguard/cli"
	"go.astrophena.name/incguard/cli/clitest"
	"go.astrophena.name/incguard/guard"
	"go.astrophena.name/incguard/testutil"
)

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errb bytes.Buffer
	ctx := cli.WithEnv(context.Background(), &cli.Env{
		Args:   args,
		Getenv: func(string) string { return "" },
		Stdin:  strings.NewReader(""),
		Stdout: &out,
		Stderr: &errb,
	})
	err = cli.Run(ctx, new(app))
	return out.String(), errb.String(), err
}

// Each archive in testdata holds:
//
//   - args: command-line arguments, one per line;
//   - stdout: expected standard output;
//   - stderr: optional text that standard error must contain, otherwise it
//     must be empty;
//   - absent: optional paths that must not exist after the run;
//   - want/NAME: expected contents of NAME after the run;
//   - any other file: created in a temporary directory before the run.
//     Names ending in a slash are created as directories.
func TestGuardsFromTxtar(t *testing.T) {
	testutil.Run(t, filepath.Join("testdata", "*.txtar"), func(t *testing.T, match string) {
		ar, err := txtar.ParseFile(match)
		if err != nil {
			t.Fatalf("ParseFile(%q): %v", match, err)
		}

		var (
			args       []string
			wantStdout string
			wantStderr string
			absent     []string
			want       = make(map[string]string)
			inputs     = new(txtar.Archive)
		)
		for _, f := range ar.Files {
			switch {
			case f.Name == "args":
				args = lines(f.Data)
			case f.Name == "stdout":
				wantStdout = string(f.Data)
			case f.Name == "stderr":
				wantStderr = strings.TrimSuffix(string(f.Data), "\n")
			case f.Name == "absent":
				absent = lines(f.Data)
			case strings.HasPrefix(f.Name, "want/"):
				want[strings.TrimPrefix(f.Name, "want/")] = string(f.Data)
			default:
				inputs.Files = append(inputs.Files, f)
			}
		}

		dir := t.TempDir()
		testutil.ExtractTxtar(t, inputs, dir)
		t.Chdir(dir)

		stdout, stderr, err := run(t, args...)
		if err != nil {
			t.Fatalf("run(%q): %v", args, err)
		}
		testutil.AssertEqual(t, stdout, wantStdout)
		if wantStderr == "" && stderr != "" {
			t.Errorf("stderr must be empty, got: %q", stderr)
		}
		if !strings.Contains(stderr, wantStderr) {
			t.Errorf("stderr must contain %q, got: %q", wantStderr, stderr)
		}

		for name, content := range want {
			testutil.AssertEqual(t, testutil.ReadFile(t, filepath.Join(dir, name)), content)
		}
		for _, name := range absent {
			if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
				t.Errorf("%s must not exist, got: %v", name, err)
			}
		}
	})
}

func lines(b []byte) []string {
	s := strings.TrimSuffix(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestArgumentErrors(t *testing.T) {
	cases := map[string]struct {
		args    []string
		wantErr error
		wantMsg string
	}{
		"unknown long option": {
			args:    []string{"foo.h", "--bogus"},
			wantErr: cli.ErrUnknownOption,
			wantMsg: "option '--bogus' does not exist",
		},
		"missing prefix": {
			args:    []string{"foo.h", "--lib-prefix"},
			wantErr: cli.ErrMissingValue,
			wantMsg: "option '--lib-prefix' requires an argument",
		},
		"option as prefix": {
			args:    []string{"--lib-prefix", "--force", "foo.h"},
			wantErr: cli.ErrMissingValue,
			wantMsg: "option '--lib-prefix' requires an argument",
		},
		"option as prefix, no files": {
			args:    []string{"--lib-prefix", "-f"},
			wantErr: cli.ErrMissingValue,
			wantMsg: "option '--lib-prefix' requires an argument",
		},
		"value for force": {
			args:    []string{"--force=yes", "foo.h"},
			wantErr: cli.ErrUnexpectedValue,
			wantMsg: "option '--force' does not take an argument",
		},
		"value for pragma": {
			args:    []string{"--pragma=true", "foo.h"},
			wantErr: cli.ErrUnexpectedValue,
			wantMsg: "option '--pragma' does not take an argument",
		},
		"value for short pragma": {
			args:    []string{"-p=false", "foo.h"},
			wantErr: cli.ErrInvalidOption,
			wantMsg: "invalid option -- '='",
		},
		"value for short force": {
			args:    []string{"-f=yes", "foo.h"},
			wantErr: cli.ErrInvalidOption,
			wantMsg: "invalid option -- '='",
		},
		"unknown short option": {
			args:    []string{"-fz", "foo.h"},
			wantErr: cli.ErrInvalidOption,
			wantMsg: "invalid option -- 'z'",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			testutil.WriteFile(t, "foo.h", "")

			stdout, _, err := run(t, tc.args...)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want err %v, got %v", tc.wantErr, err)
			}
			if !errors.Is(err, cli.ErrInvalidArgs) {
				t.Fatalf("want err to wrap cli.ErrInvalidArgs, got %v", err)
			}
			testutil.AssertEqual(t, err.Error(), tc.wantMsg)
			testutil.AssertEqual(t, stdout, "")
			// Nothing is written before all arguments are parsed.
			testutil.AssertEqual(t, testutil.ReadFile(t, "foo.h"), "")
		})
	}
}

func TestHelp(t *testing.T) {
	_, stderr, err := run(t, "--help", "foo.h")
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("want pflag.ErrHelp, got %v", err)
	}
	for _, want := range []string{
		"Incguard writes include guards",
		"-f, --force",
		"-p, --pragma",
		"-P, --no-pragma",
		"-F, --full-path",
		"--lib-prefix PREFIX",
		"#define FOO_H",
		"Nothing\nis backed up",
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("help must contain %q, got: %q", want, stderr)
		}
	}
}

func TestWriteFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, "file.h", "")

	stdout, stderr, err := run(t, "file.h/child.h", "missing.h")
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, stdout, "Creating include guards...\nmissing.h: does not exist\nFinished. 2 errors.\n")
	if !strings.Contains(stderr, "file.h/child.h: could not be written: ") {
		t.Errorf("stderr must report the failure, got: %q", stderr)
	}
}

func TestForceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, "foo.h", "old contents\n")

	var outputs []string
	for range 2 {
		if _, _, err := run(t, "--force", "--lib-prefix=MYLIB", "foo.h"); err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, testutil.ReadFile(t, "foo.h"))
	}
	testutil.AssertEqual(t, outputs[0], "#ifndef MYLIB_FOO_H\n#define MYLIB_FOO_H\n#endif /* MYLIB_FOO_H */\n")
	testutil.AssertEqual(t, outputs[1], outputs[0])
}

func TestFlags(t *testing.T) {
	setup := func(t *testing.T) *app { return new(app) }

	check := func(want guard.Options) func(*testing.T, *app) {
		return func(t *testing.T, a *app) {
			testutil.AssertEqual(t, a.opts, want)
		}
	}

	cases := map[string]clitest.Case[*app]{
		"defaults": {
			WantInStdout: "No files.",
			CheckFunc:    check(guard.Options{}),
		},
		"long": {
			Args:      []string{"--force", "--full-path", "--pragma", "--lib-prefix=X"},
			CheckFunc: check(guard.Options{Force: true, FullPath: true, Pragma: guard.PragmaAlways, LibPrefix: "X"}),
		},
		"short": {
			Args:      []string{"-f", "-F", "-P"},
			CheckFunc: check(guard.Options{Force: true, FullPath: true, Pragma: guard.PragmaNever}),
		},
		"cluster, last pragma wins": {
			Args:      []string{"-pPp"},
			CheckFunc: check(guard.Options{Pragma: guard.PragmaAlways}),
		},
		"long, last pragma wins": {
			Args:      []string{"--pragma", "--no-pragma"},
			CheckFunc: check(guard.Options{Pragma: guard.PragmaNever}),
		},
		"unknown": {
			Args:    []string{"--bogus"},
			WantErr: cli.ErrUnknownOption,
		},
		"unknown short": {
			Args:        []string{"-x"},
			WantErrType: &cli.OptionError{},
		},
		"version": {
			Args:         []string{"--version"},
			WantErr:      cli.ErrExitVersion,
			WantInStderr: "built with",
		},
	}

	clitest.Run(t, setup, cases)
}

func TestPragmaValue(t *testing.T) {
	var mode guard.PragmaMode
	on := &pragmaValue{mode: &mode, set: guard.PragmaAlways}
	off := &pragmaValue{mode: &mode, set: guard.PragmaNever}

	testutil.AssertEqual(t, on.String(), "false")
	testutil.AssertEqual(t, on.Set("true"), nil)
	testutil.AssertEqual(t, mode, guard.PragmaAlways)
	testutil.AssertEqual(t, on.String(), "true")

	testutil.AssertEqual(t, off.Set("true"), nil)
	testutil.AssertEqual(t, mode, guard.PragmaNever)
	testutil.AssertEqual(t, on.String(), "false")

	// Turning off a switch that is not in effect keeps the other one.
	testutil.AssertEqual(t, on.Set("false"), nil)
	testutil.AssertEqual(t, mode, guard.PragmaNever)
	testutil.AssertEqual(t, off.Set("false"), nil)
	testutil.AssertEqual(t, mode, guard.PragmaAuto)

	if err := on.Set("maybe"); err == nil {
		t.Fatal("Set(\"maybe\") must fail")
	}
	testutil.AssertEqual(t, (&pragmaValue{}).String(), "false")
}
