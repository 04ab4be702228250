package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().IntP("bits", "b", 64, "")
	c.Flags().Uint64P("rip", "r", 0, "")
	c.Flags().Bool("no-color", false, "")
	c.Flags().BoolP("debug", "d", false, "")
	c.Flags().BoolP("verbose", "v", false, "")
	c.Flags().String("log-file", "", "")
	return c
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr string
	}{
		{
			name:  "full",
			input: `{"bits": 32, "rip": 4096, "noColor": true, "debug": true, "verbose": true, "logFile": "x.log"}`,
			want:  Config{Bits: 32, Rip: 4096, NoColor: true, Debug: true, Verbose: true, LogFile: "x.log"},
		},
		{
			name:  "empty object",
			input: `{}`,
			want:  Config{},
		},
		{
			name:    "bad bits",
			input:   `{"bits": 8}`,
			wantErr: "invalid bits 8",
		},
		{
			name:    "unknown field",
			input:   `{"bitz": 32}`,
			wantErr: "unknown field",
		},
		{
			name:    "not json",
			input:   `bits = 32`,
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parseConfig() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseConfig() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndisasm.json")
	if err := os.WriteFile(path, []byte(`{"bits": 16}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bits != 16 {
		t.Errorf("Bits = %d, want 16", cfg.Bits)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadConfig() on a missing file succeeded")
	}
}

func TestConfigApply(t *testing.T) {
	c := newFlagCommand()
	if err := c.Flags().Parse([]string{"--bits", "16"}); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Bits: 32, Rip: 0x1000, Verbose: true, LogFile: "ndisasm.log"}
	if err := cfg.apply(c); err != nil {
		t.Fatal(err)
	}

	// The command line wins over the config.
	if bits, _ := c.Flags().GetInt("bits"); bits != 16 {
		t.Errorf("bits = %d, want 16", bits)
	}
	if rip, _ := c.Flags().GetUint64("rip"); rip != 0x1000 {
		t.Errorf("rip = %#x, want 0x1000", rip)
	}
	if v, _ := c.Flags().GetBool("verbose"); !v {
		t.Error("verbose not applied")
	}
	if d, _ := c.Flags().GetBool("debug"); d {
		t.Error("debug set although the config leaves it off")
	}
	if f, _ := c.Flags().GetString("log-file"); f != "ndisasm.log" {
		t.Errorf("log-file = %q", f)
	}
}

func TestConfigSchema(t *testing.T) {
	bts, err := configSchema()
	if err != nil {
		t.Fatal(err)
	}

	var schema map[string]any
	if err := json.Unmarshal(bts, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	for _, field := range []string{"bits", "rip", "noColor", "debug", "verbose", "logFile"} {
		if !strings.Contains(string(bts), `"`+field+`"`) {
			t.Errorf("schema does not mention %q", field)
		}
	}
	if !strings.Contains(string(bts), "Decode mode") {
		t.Error("schema lost the field descriptions")
	}
}
