// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Incguard writes include guards into C and C++ source files.

Each file named on the command line must already exist. Its contents are
replaced with either a #pragma once line or a macro guard:

	#ifndef FOO_H
	#define FOO_H

followed by an #endif line that repeats FOO_H in a C comment.

The macro name is derived from the file name: ASCII letters and digits are
upper-cased and every other ASCII character becomes an underscore.
Files ending in .hh, .hpp or .hxx get #pragma once unless --pragma or
--no-pragma says otherwise; the last of the two wins. With --lib-prefix,
the prefix and an underscore come first. The prefix may be given as
--lib-prefix=PREFIX or as the next argument, but it may not start with a
dash, so a forgotten value is not mistaken for another option.

Files that are not empty are left alone unless --force is given. Nothing
is backed up, so forced files lose their previous contents.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/incguard/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
