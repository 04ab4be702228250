package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm"
)

// Config mirrors the persistent flags. Values loaded from --config become
// flag defaults: a flag given on the command line always wins.
type Config struct {
	Bits    int    `json:"bits,omitempty" jsonschema:"title=Bits,description=Decode mode,enum=16,enum=32,enum=64,default=64"`
	Rip     uint64 `json:"rip,omitempty" jsonschema:"title=RIP,description=Address of the first decoded byte"`
	NoColor bool   `json:"noColor,omitempty" jsonschema:"title=No Color,description=Disable colored output"`
	Debug   bool   `json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
	Verbose bool   `json:"verbose,omitempty" jsonschema:"title=Verbose,description=Print extended instruction info"`
	LogFile string `json:"logFile,omitempty" jsonschema:"title=Log File,description=Write application logs to this file"`
}

// LoadConfig reads and validates a JSON config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Bits != 0 {
		if _, ok := bddisasm.ModeFromBits(cfg.Bits); !ok {
			return Config{}, fmt.Errorf("invalid bits %d in config: want 16, 32 or 64", cfg.Bits)
		}
	}
	return cfg, nil
}

// apply sets every flag the user left alone to its configured value.
func (c Config) apply(cmd *cobra.Command) error {
	values := map[string]string{}
	if c.Bits != 0 {
		values["bits"] = strconv.Itoa(c.Bits)
	}
	if c.Rip != 0 {
		values["rip"] = strconv.FormatUint(c.Rip, 10)
	}
	if c.NoColor {
		values["no-color"] = "true"
	}
	if c.Debug {
		values["debug"] = "true"
	}
	if c.Verbose {
		values["verbose"] = "true"
	}
	if c.LogFile != "" {
		values["log-file"] = c.LogFile
	}

	flags := cmd.Flags()
	for name, value := range values {
		if flags.Lookup(name) == nil || flags.Changed(name) {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("config value for %s: %w", name, err)
		}
	}
	return nil
}
