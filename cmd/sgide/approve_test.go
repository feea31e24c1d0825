package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLineRef(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		wantFile string
		wantLine int
		wantErr  bool
	}{
		{name: "simple", ref: "skillgate.yml:12", wantFile: "skillgate.yml", wantLine: 12},
		{name: "nested path", ref: ".claude/settings.json:3", wantFile: ".claude/settings.json", wantLine: 3},
		{name: "windows drive", ref: `C:\ws\skillgate.yml:7`, wantFile: `C:\ws\skillgate.yml`, wantLine: 7},
		{name: "no colon", ref: "skillgate.yml", wantErr: true},
		{name: "missing line", ref: "skillgate.yml:", wantErr: true},
		{name: "leading colon only", ref: ":12", wantErr: true},
		{name: "non-numeric line", ref: "skillgate.yml:abc", wantErr: true},
		{name: "zero line", ref: "skillgate.yml:0", wantErr: true},
		{name: "negative line", ref: "skillgate.yml:-4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, line, err := splitLineRef(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, file)
			assert.Equal(t, tt.wantLine, line)
		})
	}
}
