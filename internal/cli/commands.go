package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/keygate/keygate/internal/common/httpclient"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// newClient builds the client used by every command talking to the server.
var newClient = func(cfg *Config) httpclient.HTTPClientInterface {
	return httpclient.NewClient(cfg)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keygate [command] [flags]",
	Short: "keygate CLI - manage license keys and talk to a keygate server",
	Long: `keygate CLI is a command line interface for a keygate server.
It generates and manages license keys, checks keys and sends chat prompts
through the server's gateway.

Examples:
  # Point the CLI at a server
  keygate config create --server http://localhost:10000 --admin-password secret

  # Generate a key
  keygate keys generate premium

  # Check a key
  keygate validate DARK-1A2B3C4D-PRE

  # Send a prompt
  keygate chat --key DARK-1A2B3C4D-PRE "hello"`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(os.Stdout, map[string]any{
				"result": 0,
				"error":  err.Error(),
			})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the configuration for every command except
// those that work without one.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" || c.Name() == "help" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New(`keygate config file not found. Configure keygate with "keygate config create" first`)
		}
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the keygate CLI",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := configFile
			if configPath == "" {
				var err error
				if configPath, err = GetDefaultConfigPath(); err != nil {
					configPath = "unknown"
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			} else {
				fmt.Fprintf(out, "keygate CLI %s\n", getCLIVersion())
				fmt.Fprintf(out, "Config file: %s\n", configPath)
			}
		},
	}
}

func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

// printResult prints a successful result in the CLI's JSON shape.
func printResult(w io.Writer, value any) {
	printJSON(w, map[string]any{
		"result": 1,
		"value":  value,
	})
}

func getCLIVersion() string {
	return "v0.1.0"
}
