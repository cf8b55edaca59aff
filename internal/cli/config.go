package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chartcode/internal/config"
	"github.com/ppiankov/chartcode/internal/model"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chartcode configuration",
	Long: `Manage chartcode configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CHARTCODE_*, e.g. CHARTCODE_LLM_PROVIDER)
3. Config file (~/.chartcode/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.LLM.APIKey = redact(shown.LLM.APIKey)
		shown.Store.DSN = redact(shown.Store.DSN)

		yamlData, err := yaml.Marshal(shown)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		fmt.Print(string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if path == "" {
			return eris.New("cannot determine home directory; pass --config")
		}
		if _, err := os.Stat(path); err == nil {
			return eris.Errorf("config file already exists: %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return eris.Wrap(err, "create config directory")
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}
		content := configHeader + string(yamlData) + configFooter
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return eris.Wrap(err, "write config")
		}

		fmt.Printf("✓ Created default configuration: %s\n", path)
		fmt.Printf("\nTo view the effective configuration:\n  chartcode config show\n")
		return nil
	},
}

const configHeader = `# chartcode configuration
#
# Every key can be overridden with an environment variable:
#   llm.provider -> CHARTCODE_LLM_PROVIDER
#
# llm.provider: openai, anthropic or ollama; empty disables extraction.
# store.driver: memory, sqlite or postgres.
# log.format:   console or json.

`

const configFooter = `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
