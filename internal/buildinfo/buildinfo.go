// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

// Build metadata, set during build via ldflags.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)
