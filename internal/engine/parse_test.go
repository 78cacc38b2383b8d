package engine

import "testing"

func TestUnwrapFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  \n```JSON\n{\"a\":1}```  ", `{"a":1}`},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := unwrapFence(tt.in); got != tt.want {
			t.Errorf("unwrapFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		score   float64
		source  string
		wantErr bool
	}{
		{"structured", `{"buyability_score": 82, "feedback": "ok"}`, 82, "structured", false},
		{"structured decimal", `{"buyability_score": 80.5}`, 80.5, "structured", false},
		{"quoted number falls back", `{"buyability_score": "77"}`, 77, "text_fallback", false},
		{"equals sign", "buyability_score = 64", 64, "text_fallback", false},
		{"case insensitive", "Buyability_Score: 90", 90, "text_fallback", false},
		{"json without score", `{"feedback": "no number"}`, 0, "", true},
		{"nothing", "great lead!", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, source, _, err := extractScore(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractScore: %v", err)
			}
			if score != tt.score || source != tt.source {
				t.Errorf("extractScore = %v/%s, want %v/%s", score, source, tt.score, tt.source)
			}
		})
	}
}
