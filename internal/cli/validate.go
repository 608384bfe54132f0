package cli

import (
	"strings"

	"github.com/keygate/keygate/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var validateCmd = &cobra.Command{
	Use:   "validate KEY",
	Short: "Check whether a license key is valid",
	Long: `Check whether a license key is valid. The key is checked by the server
against its lifecycle: known, active and not expired.

Examples:
  keygate validate DARK-1A2B3C4D-PRE`,
	Args: cobra.ExactArgs(1),
	RunE: validateKey,
}

func validateKey(cmd *cobra.Command, args []string) error {
	body, err := sjson.SetBytes([]byte(`{}`), "key", strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}

	rsp, err := newClient(GetConfig()).Post("/api/validate-key", body, false)
	if err != nil {
		return errors.Wrap(err, "key validation failed")
	}
	result := api.ValidateKeyRsp{
		Valid:   gjson.GetBytes(rsp, "valid").Bool(),
		Message: gjson.GetBytes(rsp, "message").String(),
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		printResult(out, result)
		return nil
	}
	if result.Valid {
		okLabel.Fprintf(out, "%s: %s\n", args[0], result.Message)
		return nil
	}
	errorLabel.Fprintf(out, "%s: %s\n", args[0], result.Message)
	return ErrAlreadyHandled
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
