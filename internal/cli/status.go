package cli

import (
	"encoding/json"
	"fmt"

	"github.com/keygate/keygate/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// serverStatus is what the status command reports.
type serverStatus struct {
	CLIVersion    string `json:"version_cli"`
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
	Compatible    bool   `json:"compatible"`
	Ready         bool   `json:"ready"`
	ReadyError    string `json:"readyError,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get server version and readiness",
	Long: `Get server version and readiness. The server version is checked against
the versions this CLI supports.

Examples:
  keygate status
  keygate status -j`,
	Args: cobra.NoArgs,
	RunE: getStatus,
}

func getStatus(cmd *cobra.Command, args []string) error {
	client := newClient(GetConfig())

	body, err := client.Get("/version", false)
	if err != nil {
		return errors.Wrap(err, "unable to connect to server")
	}
	var version api.VersionRsp
	if err := json.Unmarshal(body, &version); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}

	status := serverStatus{
		CLIVersion:    getCLIVersion(),
		ServerVersion: version.ServerVersion,
		ApiVersion:    version.ApiVersion,
		Compatible:    api.IsVersionCompatible(version.ServerVersion),
		Ready:         true,
	}
	if _, err := client.Get("/ready", false); err != nil {
		status.Ready = false
		status.ReadyError = err.Error()
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		printResult(out, status)
		return nil
	}

	fmt.Fprintf(out, "keygate CLI %s\n", status.CLIVersion)
	fmt.Fprintf(out, "Server Version: %s\n", status.ServerVersion)
	fmt.Fprintf(out, "API Version: %s\n", status.ApiVersion)
	if !status.Compatible {
		warnLabel.Fprintf(out, "Warning: server version %s is not supported by this CLI\n", status.ServerVersion)
	}
	if status.Ready {
		okLabel.Fprintln(out, "Server is ready")
	} else {
		errorLabel.Fprintf(out, "Server is not ready: %s\n", status.ReadyError)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
