package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yangwenmai/leadsniper/internal/config"
	"github.com/yangwenmai/leadsniper/internal/engine"
	"github.com/yangwenmai/leadsniper/internal/model"
)

const leadJSON = `{"source":"reddit","title":"Looking for a CRM","content":"We are actively looking for a CRM, our current one is terrible, 50 employees","author":"x"}`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// clearEnv makes config.Load fall back to defaults with stub generation.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_PROVIDER", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "STORE_BACKEND",
		"LEADSNIPER_CONFIG", "APPROVAL_THRESHOLD", "ASSET_PRICE", "TOKEN_TTL",
	} {
		t.Setenv(k, "")
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadLeads(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantLen   int
		wantBatch bool
		wantErr   bool
	}{
		{"single object", leadJSON, 1, false, false},
		{"array", "[" + leadJSON + "," + leadJSON + "]", 2, true, false},
		{"surrounding whitespace", "\n  " + leadJSON + "\n", 1, false, false},
		{"empty array", "[]", 0, false, true},
		{"empty file", "   ", 0, false, true},
		{"invalid json", "{oops", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isBatch, err := readLeads(writeFile(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != tt.wantLen || isBatch != tt.wantBatch {
				t.Errorf("got %d leads (batch=%v), want %d (batch=%v)", len(got), isBatch, tt.wantLen, tt.wantBatch)
			}
			if got[0].Source != "reddit" {
				t.Errorf("Source = %q, want reddit", got[0].Source)
			}
		})
	}
}

func TestReadLeads_MissingFile(t *testing.T) {
	if _, _, err := readLeads(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"openai without key", config.Config{LLMProvider: "openai"}, "*engine.StubGenerator"},
		{"gemini without key", config.Config{LLMProvider: "gemini"}, "*engine.StubGenerator"},
		{"openai with key", config.Config{LLMProvider: "openai", OpenAIKey: "sk-test"}, "*engine.OpenAIClient"},
		{"claude without key", config.Config{LLMProvider: "claude"}, "*engine.StubGenerator"},
		{"claude with key", config.Config{LLMProvider: "claude", AnthropicKey: "sk-ant"}, "*engine.ClaudeClient"},
		{"ollama", config.Config{LLMProvider: "ollama", OllamaURL: "http://localhost:11434"}, "*engine.OllamaClient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := newGenerator(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("newGenerator: %v", err)
			}
			var got string
			switch gen.(type) {
			case *engine.StubGenerator:
				got = "*engine.StubGenerator"
			case *engine.OpenAIClient:
				got = "*engine.OpenAIClient"
			case *engine.ClaudeClient:
				got = "*engine.ClaudeClient"
			case *engine.OllamaClient:
				got = "*engine.OllamaClient"
			}
			if got != tt.want {
				t.Errorf("generator = %T, want %s", gen, tt.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "validate", writeFile(t, leadJSON))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var report model.ValidationReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if report.QualityScore != 85 || !report.IsValid {
		t.Errorf("report = %+v, want score 85 and valid", report)
	}
}

func TestProcessCommand(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "process", writeFile(t, leadJSON))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var res struct {
		Lead struct {
			LeadID          string   `json:"lead_id"`
			Status          string   `json:"status"`
			BuyabilityScore *float64 `json:"buyability_score"`
		} `json:"lead"`
		Asset *model.ProtectedAsset `json:"protected_asset"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Lead.LeadID == "" || res.Lead.Status != model.StatusProcessed {
		t.Fatalf("lead = %+v", res.Lead)
	}
	// The stub auditor scores 85, above the default threshold.
	if res.Lead.BuyabilityScore == nil || *res.Lead.BuyabilityScore != 85 || res.Asset == nil {
		t.Errorf("expected a protected lead scored 85, got %s", out)
	}
}

func TestProcessCommand_Batch(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "["+leadJSON+","+leadJSON+","+leadJSON+"]")
	out, err := execute(t, "process", path, "--limit", "2")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(out, `"total": 2`) || !strings.Contains(out, `"processed": 2`) {
		t.Errorf("unexpected batch output:\n%s", out)
	}
}

func TestProcessCommand_MissingArg(t *testing.T) {
	if _, err := execute(t, "process"); err == nil {
		t.Error("expected error without a file argument")
	}
}
