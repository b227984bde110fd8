package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/mentord/internal/pipeline"
)

func TestReadCorrection(t *testing.T) {
	fields := []string{pipeline.FieldProblemText}

	tests := []struct {
		name  string
		input string
		want  pipeline.Correction
		ok    bool
	}{
		{
			name:  "explicit field and value",
			input: "problem_text: solve x^2 - 4 = 0\n",
			want:  pipeline.Correction{Field: "problem_text", Value: "solve x^2 - 4 = 0"},
			ok:    true,
		},
		{
			name:  "bare value targets the first field",
			input: "solve 2x + 1 = 7\n",
			want:  pipeline.Correction{Field: "problem_text", Value: "solve 2x + 1 = 7"},
			ok:    true,
		},
		{
			name:  "colon inside problem text is not a field name",
			input: "the ratio is 3:4, find the parts\n",
			want:  pipeline.Correction{Field: "problem_text", Value: "the ratio is 3:4, find the parts"},
			ok:    true,
		},
		{
			name:  "empty line abandons",
			input: "\n",
			ok:    false,
		},
		{
			name:  "eof abandons",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			got, ok := readCorrection(reader, fields)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
