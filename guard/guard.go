// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package guard derives include guards for C and C++ source files and writes
// them in place.
package guard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PragmaMode selects between #pragma once and macro guards.
type PragmaMode int

const (
	// PragmaAuto picks #pragma once for C++ header extensions and macro
	// guards for everything else.
	PragmaAuto PragmaMode = iota
	// PragmaAlways forces #pragma once.
	PragmaAlways
	// PragmaNever forces macro guards.
	PragmaNever
)

func (m PragmaMode) String() string {
	switch m {
	case PragmaAuto:
		return "auto"
	case PragmaAlways:
		return "always"
	case PragmaNever:
		return "never"
	default:
		return fmt.Sprintf("PragmaMode(%d)", int(m))
	}
}

// Options control how guards are derived and when files may be overwritten.
type Options struct {
	// LibPrefix, if not empty, is prepended to macro names followed by an
	// underscore.
	LibPrefix string
	// FullPath derives macro names from the path as given instead of its
	// last element.
	FullPath bool
	Pragma   PragmaMode
	// Force allows overwriting files that are not empty.
	Force bool
}

// pragmaExts lists extensions that get #pragma once in PragmaAuto mode.
var pragmaExts = map[string]bool{
	".hh":  true,
	".hpp": true,
	".hxx": true,
}

// MacroName derives a guard macro from name. ASCII letters and digits are
// upper-cased, other ASCII bytes become underscores and non-ASCII bytes are
// copied unchanged. A non-empty prefix is emitted first, followed by an
// underscore.
func MacroName(name, prefix string) string {
	var sb strings.Builder
	if prefix != "" {
		sb.Grow(len(prefix) + 1 + len(name))
		sb.WriteString(prefix)
		sb.WriteByte('_')
	} else {
		sb.Grow(len(name))
	}
	for i := 0; i < len(name); i++ {
		sb.WriteByte(macroByte(name[i]))
	}
	return sb.String()
}

func macroByte(c byte) byte {
	switch {
	case c >= 0x80:
		return c
	case 'a' <= c && c <= 'z':
		return c - ('a' - 'A')
	case 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return c
	default:
		return '_'
	}
}

// UsePragma reports whether path should get #pragma once.
func UsePragma(path string, mode PragmaMode) bool {
	switch mode {
	case PragmaAlways:
		return true
	case PragmaNever:
		return false
	}
	return pragmaExts[filepath.Ext(path)]
}

// Content returns the guard text for path. macro is empty when the guard is
// #pragma once.
func Content(path string, opts Options) (content []byte, macro string) {
	if UsePragma(path, opts.Pragma) {
		return []byte("#pragma once\n"), ""
	}
	name := path
	if !opts.FullPath {
		name = filepath.Base(path)
	}
	macro = MacroName(name, opts.LibPrefix)
	return fmt.Appendf(nil, "#ifndef %[1]s\n#define %[1]s\n#endif /* %[1]s */\n", macro), macro
}

var (
	// ErrNotExist means the target path does not exist.
	ErrNotExist = errors.New("does not exist")
	// ErrNotRegular means the target is a directory, device or other
	// non-regular file.
	ErrNotRegular = errors.New("not a regular file")
	// ErrNotEmpty means the target has content and overwriting was not
	// forced.
	ErrNotEmpty = errors.New("not empty")
)

// Status is the outcome of processing a single file.
type Status int

const (
	Written Status = iota
	NotExist
	NotRegular
	NotEmpty
	Failed
)

func (s Status) String() string {
	switch s {
	case Written:
		return "written"
	case NotExist:
		return "not exist"
	case NotRegular:
		return "not regular"
	case NotEmpty:
		return "not empty"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result describes what Process did with a path.
type Result struct {
	Path   string
	Status Status
	// Macro is the written macro name, or empty for #pragma once and for
	// files that were not written.
	Macro string
	Err   error
}

// Process writes the guard for path, replacing its contents. It never
// creates files and only overwrites non-empty ones when opts.Force is set.
func Process(path string, opts Options) Result {
	res := Result{Path: path}

	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Status = NotExist
		res.Err = fmt.Errorf("%s: %w", path, ErrNotExist)
		return res
	case err != nil:
		res.Status = Failed
		res.Err = err
		return res
	case !fi.Mode().IsRegular():
		res.Status = NotRegular
		res.Err = fmt.Errorf("%s: %w", path, ErrNotRegular)
		return res
	case fi.Size() > 0 && !opts.Force:
		res.Status = NotEmpty
		res.Err = fmt.Errorf("%s: %w", path, ErrNotEmpty)
		return res
	}

	content, macro := Content(path, opts)
	if err := overwrite(path, content); err != nil {
		res.Status = Failed
		res.Err = err
		return res
	}
	res.Status = Written
	res.Macro = macro
	return res
}

// overwrite truncates an existing file and writes b to it.
func overwrite(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Summary aggregates results of a run.
type Summary struct {
	written  int
	failed   int
	notEmpty int
}

// Add records r.
func (s *Summary) Add(r Result) {
	switch r.Status {
	case Written:
		s.written++
	case NotEmpty:
		s.notEmpty++
	default:
		s.failed++
	}
}

// Written returns the number of files that got a guard.
func (s *Summary) Written() int { return s.written }

// Failed returns the number of files that did not exist, were not regular
// or could not be written.
func (s *Summary) Failed() int { return s.failed }

// SkippedNotEmpty returns the number of files left alone because they had
// content.
func (s *Summary) SkippedNotEmpty() int { return s.notEmpty }
