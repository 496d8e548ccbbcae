// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContentType(t *testing.T) {
	tests := []struct {
		input  string
		want   ContentType
		wantOK bool
	}{
		{input: "movie", want: ContentTypeMovie, wantOK: true},
		{input: "tv", want: ContentTypeTV, wantOK: true},
		{input: "Movie", want: ContentTypeMovie, wantOK: true},
		{input: "TV", want: ContentTypeTV, wantOK: true},
		{input: " tv ", want: ContentTypeTV, wantOK: true},
		{input: "music", wantOK: false},
		{input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseContentType(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
