package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

const configVersion = "0.1.0"

// Config holds the server connection and the credentials used by the CLI.
type Config struct {
	Version string `yaml:"version"`
	// ServerURL is the URL and port of the keygate server
	ServerURL string `yaml:"server_url"`
	// AdminPassword authenticates the key management commands
	AdminPassword string `yaml:"admin_password,omitempty"`
	// LicenseKey is used by chat when --key is not given
	LicenseKey string `yaml:"license_key,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file,
// e.g. ~/.config/keygate/config.yaml on Linux.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, "keygate", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file, or from the default location
// when file is empty.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "unable to read config file")
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return errors.Wrap(err, "unable to parse config file")
	}
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	c.ServerURL = MorphServer(c.ServerURL)
	if err := c.ValidateConfig(); err != nil {
		return err
	}

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to file with owner-only permissions.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return errors.Wrap(err, "unable to create config directory")
	}
	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "unable to generate configuration")
	}
	if err := os.WriteFile(file, yamlStr, 0o600); err != nil {
		return errors.Wrap(err, "unable to write config file")
	}
	return nil
}

func (cfg *Config) ValidateConfig() error {
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	if !strings.HasPrefix(cfg.ServerURL, "http://") && !strings.HasPrefix(cfg.ServerURL, "https://") {
		return errors.New("server URL must start with http:// or https://")
	}
	return nil
}

func (cfg *Config) Print(w io.Writer) {
	fmt.Fprintf(w, "Server: %s\n", cfg.ServerURL)
	if cfg.AdminPassword != "" {
		fmt.Fprintln(w, "Admin password: set")
	} else {
		fmt.Fprintln(w, "Admin password: not set")
	}
	if cfg.LicenseKey != "" {
		fmt.Fprintf(w, "License key: %s\n", cfg.LicenseKey)
	}
}

// MorphServer removes trailing slashes and adds http:// when no scheme is given.
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

func (cfg *Config) GetAdminPassword() string {
	return cfg.AdminPassword
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Manage CLI configuration settings like the server location and credentials.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	configServer        string
	configAdminPassword string
	configLicenseKey    string
)

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the CLI configuration file",
	Long: `Create the CLI configuration file, replacing any existing one.

Examples:
  keygate config create --server http://localhost:10000
  keygate config create --server keygate.example.com --admin-password secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &Config{
			Version:       configVersion,
			ServerURL:     MorphServer(configServer),
			AdminPassword: configAdminPassword,
			LicenseKey:    strings.TrimSpace(configLicenseKey),
		}
		if err := cfg.ValidateConfig(); err != nil {
			return err
		}
		if err := cfg.WriteConfig(configFile); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			printResult(out, map[string]string{
				"server":      cfg.ServerURL,
				"config_file": configFile,
			})
			return nil
		}
		okLabel.Fprintf(out, "Server configured: %s\n", cfg.ServerURL)
		fmt.Fprintf(out, "Config file: %s\n", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current CLI configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := LoadConfig(configFile); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			printResult(out, map[string]any{
				"server":             GetConfig().ServerURL,
				"admin_password_set": GetConfig().AdminPassword != "",
				"license_key":        GetConfig().LicenseKey,
				"config_file":        configFile,
			})
			return nil
		}
		GetConfig().Print(out)
		return nil
	},
}

func init() {
	configCreateCmd.Flags().StringVar(&configServer, "server", "", "Server URL and port (e.g. http://localhost:10000)")
	configCreateCmd.Flags().StringVar(&configAdminPassword, "admin-password", "", "Admin password for key management")
	configCreateCmd.Flags().StringVar(&configLicenseKey, "license-key", "", "Default license key for chat")
	configCreateCmd.MarkFlagRequired("server")

	configCmd.AddCommand(configCreateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
