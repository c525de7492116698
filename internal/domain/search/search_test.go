package search

import (
	"errors"
	"testing"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

func TestParseManual(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Result
		wantErr bool
	}{
		{
			name:  "pipe row with snippet",
			input: "Example|https://example.com|snippet",
			want: []Result{
				{Title: "Example", URL: "https://example.com", Snippet: "snippet", Source: ProviderManual, Rank: 1},
			},
		},
		{
			name:  "pipe row without snippet",
			input: "Example|https://example.com",
			want: []Result{
				{Title: "Example", URL: "https://example.com", Source: ProviderManual, Rank: 1},
			},
		},
		{
			name:  "bare url line",
			input: "https://example.com/page",
			want: []Result{
				{Title: "https://example.com/page", URL: "https://example.com/page", Source: ProviderManual, Rank: 1},
			},
		},
		{
			name:  "mixed lines with blanks",
			input: "\nhttps://a.example\n\nB|https://b.example|two\n",
			want: []Result{
				{Title: "https://a.example", URL: "https://a.example", Source: ProviderManual, Rank: 1},
				{Title: "B", URL: "https://b.example", Snippet: "two", Source: ProviderManual, Rank: 2},
			},
		},
		{name: "not a url", input: "not a url", wantErr: true},
		{name: "pipe row with bad url", input: "Example|ftp://example.com|x", wantErr: true},
		{name: "empty input", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManual(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, fault.ErrValidation) {
					t.Errorf("error %v is not a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseManual failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("result[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
