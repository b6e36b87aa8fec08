// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"go.astrophena.name/incguard/cli"
	"go.astrophena.name/incguard/guard"
	"go.astrophena.name/incguard/logger"
	"go.astrophena.name/incguard/syncx"
)

func main() { cli.Main(new(app)) }

type app struct {
	opts guard.Options
}

func (a *app) Flags(flags *pflag.FlagSet) {
	flags.BoolVarP(&a.opts.Force, "force", "f", false, "Overwrite files that are not empty.")
	flags.VarPF(&pragmaValue{mode: &a.opts.Pragma, set: guard.PragmaAlways}, "pragma", "p",
		"Always write #pragma once.").NoOptDefVal = "true"
	flags.VarPF(&pragmaValue{mode: &a.opts.Pragma, set: guard.PragmaNever}, "no-pragma", "P",
		"Always write macro guards.").NoOptDefVal = "true"
	flags.BoolVarP(&a.opts.FullPath, "full-path", "F", false, "Derive macro names from the path as given, not just the file name.")
	flags.StringVar(&a.opts.LibPrefix, "lib-prefix", "", "Prepend `PREFIX` and an underscore to macro names.")
}

// pragmaValue is a switch that sets a shared PragmaMode, so the last of
// --pragma and --no-pragma wins.
type pragmaValue struct {
	mode *guard.PragmaMode
	set  guard.PragmaMode
}

func (v *pragmaValue) String() string {
	if v.mode == nil {
		return "false"
	}
	return strconv.FormatBool(*v.mode == v.set)
}

func (v *pragmaValue) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	switch {
	case on:
		*v.mode = v.set
	case *v.mode == v.set:
		*v.mode = guard.PragmaAuto
	}
	return nil
}

func (v *pragmaValue) Type() string     { return "bool" }
func (v *pragmaValue) IsBoolFlag() bool { return true }

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	// pflag takes the next argument as the value even if it is an option.
	if strings.HasPrefix(a.opts.LibPrefix, "-") {
		return &cli.OptionError{Option: "--lib-prefix", Err: cli.ErrMissingValue}
	}

	if len(env.Args) == 0 {
		fmt.Fprintln(env.Stdout, "No files.")
		return nil
	}

	logger.Debug(ctx, "options",
		slog.String("lib_prefix", a.opts.LibPrefix),
		slog.Bool("full_path", a.opts.FullPath),
		slog.String("pragma", a.opts.Pragma.String()),
		slog.Bool("force", a.opts.Force),
	)

	p := newPrinter(env)
	fmt.Fprintln(env.Stdout, "Creating include guards...")

	var (
		sum  guard.Summary
		seen syncx.Map[string, struct{}]
	)
	for _, path := range env.Args {
		if _, dup := seen.LoadOrStore(filepath.Clean(path), struct{}{}); dup {
			logger.Warn(ctx, "file given more than once", slog.String("path", path))
		}

		res := guard.Process(path, a.opts)
		logger.Debug(ctx, "processed",
			slog.String("path", res.Path),
			slog.String("status", res.Status.String()),
			slog.String("macro", res.Macro),
		)
		sum.Add(res)
		p.result(res)
	}

	p.summary(&sum)
	return nil
}

// printer writes per-file status lines and the final summary.
type printer struct {
	env  *cli.Env
	ok   *color.Color
	skip *color.Color
	fail *color.Color
	werr *color.Color // for stderr
}

func newPrinter(env *cli.Env) *printer {
	p := &printer{
		env:  env,
		ok:   color.New(color.FgGreen),
		skip: color.New(color.FgYellow),
		fail: color.New(color.FgRed),
		werr: color.New(color.FgRed, color.Bold),
	}
	colorize(cli.UseColor(env, env.Stdout), p.ok, p.skip, p.fail)
	colorize(cli.UseColor(env, env.Stderr), p.werr)
	return p
}

func colorize(on bool, cs ...*color.Color) {
	for _, c := range cs {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func (p *printer) result(res guard.Result) {
	switch res.Status {
	case guard.Written:
		fmt.Fprintf(p.env.Stdout, "%s: %s\n", res.Path, p.ok.Sprint("done"))
	case guard.NotExist:
		fmt.Fprintf(p.env.Stdout, "%s: %s\n", res.Path, p.fail.Sprint(guard.ErrNotExist))
	case guard.NotRegular:
		fmt.Fprintf(p.env.Stdout, "%s: %s\n", res.Path, p.fail.Sprint(guard.ErrNotRegular))
	case guard.NotEmpty:
		fmt.Fprintf(p.env.Stdout, "%s: %s\n", res.Path, p.skip.Sprintf("%s (skipping)", guard.ErrNotEmpty))
	default:
		p.env.Logf("%s: %s: %v", res.Path, p.werr.Sprint("could not be written"), cause(res.Err))
	}
}

func (p *printer) summary(sum *guard.Summary) {
	switch n := sum.Failed(); n {
	case 0:
		fmt.Fprintln(p.env.Stdout, "Finished.")
	case 1:
		fmt.Fprintln(p.env.Stdout, "Finished. 1 error.")
	default:
		fmt.Fprintf(p.env.Stdout, "Finished. %d errors.\n", n)
	}
	if sum.SkippedNotEmpty() > 0 {
		fmt.Fprintln(p.env.Stdout, "Some files were not empty; use --force to overwrite them.")
	}
}

// cause strips the path that [fs.PathError] repeats from the status line.
func cause(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
