// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package cli provides helpers for creating simple, single-command
// command-line applications.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"go.astrophena.name/incguard/logger"
	"go.astrophena.name/incguard/syncx"
	"go.astrophena.name/incguard/version"
)

// Main runs an application, handling signal-based cancellation and printing errors
// to stderr. It is intended to be called directly from a program's main function.
//
// Requests for help or version exit successfully; any other error exits with
// status 1.
func Main(app App) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := Run(ctx, app)

	if err == nil || errors.Is(err, pflag.ErrHelp) || errors.Is(err, ErrExitVersion) {
		return
	}

	name := version.CmdName()
	if isPrintableError(err) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
	}
	if errors.Is(err, ErrInvalidArgs) {
		fmt.Fprintf(os.Stderr, "Try '%s --help' for more information.\n", name)
	}
	cancel()
	os.Exit(1)
}

type unprintableError struct{ err error }

func (e *unprintableError) Error() string { return e.err.Error() }
func (e *unprintableError) Unwrap() error { return e.err }

func isPrintableError(err error) bool {
	var ue *unprintableError
	return !errors.As(err, &ue)
}

// ErrExitVersion signals that the application should exit successfully after
// printing the version information.
var ErrExitVersion = &unprintableError{errors.New("version flag exit")}

// ErrInvalidArgs indicates that the user provided invalid command-line
// arguments. It should be wrapped with more specific context about the error.
var ErrInvalidArgs = errors.New("invalid arguments")

// Reasons an [OptionError] can carry.
var (
	ErrUnknownOption   = errors.New("does not exist")
	ErrMissingValue    = errors.New("requires an argument")
	ErrUnexpectedValue = errors.New("does not take an argument")
	ErrInvalidOption   = errors.New("invalid option")
)

// OptionError reports a command-line option that could not be parsed. It
// matches both [ErrInvalidArgs] and its reason with [errors.Is].
type OptionError struct {
	// Option is the offending option as typed, with its dashes.
	Option string
	Err    error
}

func (e *OptionError) Error() string {
	if e.Err == ErrInvalidOption {
		return fmt.Sprintf("invalid option -- '%s'", strings.TrimLeft(e.Option, "-"))
	}
	return fmt.Sprintf("option '%s' %v", e.Option, e.Err)
}

func (e *OptionError) Unwrap() []error { return []error{ErrInvalidArgs, e.Err} }

// App represents a runnable command-line application.
type App interface {
	// Run executes the application's primary logic.
	Run(context.Context) error
}

// HasFlags is an App that can define its own command-line flags.
type HasFlags interface {
	App

	// Flags registers flags with the given FlagSet.
	Flags(*pflag.FlagSet)
}

// AppFunc is an adapter to allow the use of ordinary functions as an App.
type AppFunc func(context.Context) error

// Run calls the underlying function.
func (f AppFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type ctxKey int

var envKey ctxKey

// GetEnv retrieves the application's environment from a context.
// If the context has no environment, it returns one based on the current OS.
func GetEnv(ctx context.Context) *Env {
	e, ok := ctx.Value(envKey).(*Env)
	if !ok {
		return OSEnv()
	}
	return e
}

// WithEnv returns a new context that carries the provided application environment.
func WithEnv(ctx context.Context, e *Env) context.Context {
	return context.WithValue(ctx, envKey, e)
}

// Env encapsulates the application's environment, including arguments,
// standard I/O streams, and environment variables.
type Env struct {
	Args   []string
	Getenv func(string) string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	logf syncx.Lazy[logger.Logf]
}

// Logf prints a formatted message to the environment's standard error.
func (e *Env) Logf(format string, args ...any) {
	e.logf.Get(func() logger.Logf {
		return log.New(e.Stderr, "", 0).Printf
	})(format, args...)
}

func (e *Env) getenv(key string) string {
	if e.Getenv == nil {
		return ""
	}
	return e.Getenv(key)
}

// OSEnv creates an Env based on the current operating system environment.
func OSEnv() *Env {
	return &Env{
		Args:   os.Args[1:],
		Getenv: os.Getenv,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// IsTerminal reports whether fd refers to a terminal. Tests may replace it.
var IsTerminal = term.IsTerminal

// UseColor reports whether output written to w should be colored: w must be
// a terminal and NO_COLOR must be unset in the environment.
func UseColor(env *Env, w io.Writer) bool {
	if env.getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && IsTerminal(int(f.Fd()))
}

// Run executes an application. It parses flags, handles standard flags like
// --version and --verbose, attaches a logger to the context and then runs the
// app.
func Run(ctx context.Context, app App) error {
	name := version.CmdName()

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SortFlags = false
	if fa, ok := app.(HasFlags); ok {
		fa.Flags(flags)
	}

	var showVersion, verbose bool
	if flags.Lookup("version") == nil {
		flags.BoolVar(&showVersion, "version", false, "Show version.")
	}
	if flags.Lookup("verbose") == nil {
		flags.BoolVar(&verbose, "verbose", false, "Log debug messages to stderr.")
	}

	env := GetEnv(ctx)

	flags.Usage = usage(name, flags, env.Stderr)
	flags.SetOutput(env.Stderr)
	if err := checkSwitches(flags, env.Args); err != nil {
		return err
	}
	if err := flags.Parse(env.Args); err != nil {
		return parseError(err)
	}

	if showVersion {
		fmt.Fprint(env.Stderr, version.Version())
		return ErrExitVersion
	}

	env.Args = flags.Args()

	l := logger.New(nil)
	l.Level.Set(slog.LevelWarn)
	if verbose {
		l.Level.Set(slog.LevelDebug)
	}
	l.Attach(logger.NewTextHandler(env.Stderr, l.Level, !UseColor(env, env.Stderr)))

	return app.Run(logger.Put(WithEnv(ctx, env), l))
}

// checkSwitches rejects values given to boolean flags with the --name=value
// form and any = in a cluster of short options, both of which pflag would
// otherwise accept.
func checkSwitches(flags *pflag.FlagSet, args []string) error {
	for _, arg := range args {
		if arg == "--" {
			return nil
		}
		if len(arg) > 1 && arg[0] == '-' && arg[1] != '-' && strings.Contains(arg, "=") {
			return &OptionError{Option: "-=", Err: ErrInvalidOption}
		}
		name, _, ok := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !ok || !strings.HasPrefix(arg, "--") {
			continue
		}
		f := flags.Lookup(name)
		if f == nil || f.NoOptDefVal == "" || f.Value.Type() != "bool" {
			continue
		}
		return &OptionError{Option: "--" + name, Err: ErrUnexpectedValue}
	}
	return nil
}

// parseError converts an error returned by pflag into an [OptionError].
func parseError(err error) error {
	var (
		notExist      *pflag.NotExistError
		valueRequired *pflag.ValueRequiredError
		invalidSyntax *pflag.InvalidSyntaxError
	)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return err
	case errors.As(err, &notExist):
		if notExist.GetSpecifiedShortnames() != "" {
			return &OptionError{Option: "-" + notExist.GetSpecifiedName(), Err: ErrInvalidOption}
		}
		return &OptionError{Option: "--" + notExist.GetSpecifiedName(), Err: ErrUnknownOption}
	case errors.As(err, &valueRequired):
		if valueRequired.GetSpecifiedShortnames() != "" {
			return &OptionError{Option: "-" + valueRequired.GetSpecifiedName(), Err: ErrMissingValue}
		}
		return &OptionError{Option: "--" + valueRequired.GetSpecifiedName(), Err: ErrMissingValue}
	case errors.As(err, &invalidSyntax):
		return &OptionError{Option: invalidSyntax.GetSpecifiedFlag(), Err: ErrUnknownOption}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
}

func usage(name string, flags *pflag.FlagSet, stderr io.Writer) func() {
	return func() {
		if docSrc != nil {
			fmt.Fprintf(stderr, "%s\n", doc.Get(parseDocComment))
		}
		fmt.Fprintf(stderr, "Usage: %s [flags] [--] file...\n\n", name)
		fmt.Fprint(stderr, "Available flags:\n\n")
		flags.PrintDefaults()
	}
}

var (
	docSrc []byte
	doc    syncx.Lazy[string]
)

// SetDocComment sets the main documentation for the application, which is
// displayed when a user passes the --help flag. It is intended to be used with
// Go's //go:embed directive.
//
// Example:
//
//	//go:embed doc.go
//	var doc []byte
//
//	func init() { cli.SetDocComment(doc) }
func SetDocComment(src []byte) {
	docSrc = src
	doc = syncx.Lazy[string]{}
}

func parseDocComment() string {
	s := bufio.NewScanner(bytes.NewReader(docSrc))
	var (
		doc       string
		inComment bool
	)
	for s.Scan() {
		line := s.Text()
		if line == "/*" {
			inComment = true
			continue
		}
		if line == "*/" {
			// Comment ended, stop scanning.
			break
		}
		if inComment {
			doc += line + "\n"
		}
	}
	if err := s.Err(); err != nil {
		panic(err)
	}
	return doc
}
