package main

import (
	"github.com/gameleadership/leadmap/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect configuration.

Settings are read from code defaults, then the config file, then the
environment (DATABASE_URL, DATA_DIR, NOMINATIM_URL, USER_AGENT, ADMIN_USER,
*_RATE_LIMIT_WINDOW, *_RATE_LIMIT_MAX, *_SEARCH_RESULT_LIMIT). A .env file
in the working directory is loaded first without overriding set variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if humanOutput {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				exitWithError(ExitError, "encoding config: %v", err)
			}
			outputHuman("%s", data)
			return nil
		}
		return outputJSON(cfg)
	},
}

// PathResponse is the output of config path.
type PathResponse struct {
	Path string `json:"path"`
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		if humanOutput {
			outputHuman("%s\n", path)
			return nil
		}
		return outputJSON(PathResponse{Path: path})
	},
}
