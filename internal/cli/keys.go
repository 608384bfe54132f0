package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/keygate/keygate/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const keyTimeFormat = "2006-01-02 15:04 MST"

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage license keys",
	Long: `Manage license keys. These commands need the admin password in the CLI
configuration.

Examples:
  keygate keys generate premium
  keygate keys list
  keygate keys deactivate DARK-1A2B3C4D-PRE
  keygate keys delete DARK-1A2B3C4D-PRE`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// normalizePlan maps user input like "premium" to the plan name the server
// expects.
func normalizePlan(plan string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(plan)))
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate PLAN",
	Short: "Generate a key for a plan (Premium, Trimestriel or Permanent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := sjson.SetBytes([]byte(`{}`), "plan_type", normalizePlan(args[0]))
		if err != nil {
			return err
		}
		rsp, err := newClient(GetConfig()).Post("/api/admin/generate-key", body, true)
		if err != nil {
			return errors.Wrap(err, "unable to generate key")
		}
		key := gjson.GetBytes(rsp, "key").String()

		out := cmd.OutOrStdout()
		if jsonOutput {
			printResult(out, api.GenerateKeyRsp{Key: key})
			return nil
		}
		okLabel.Fprintf(out, "Generated %s key: ", normalizePlan(args[0]))
		fmt.Fprintln(out, key)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all keys, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rsp, err := newClient(GetConfig()).Get("/api/admin/keys", true)
		if err != nil {
			return errors.Wrap(err, "unable to list keys")
		}
		var keys []api.KeyInfo
		if err := json.Unmarshal(rsp, &keys); err != nil {
			return errors.Wrap(err, "failed to parse response")
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			printResult(out, keys)
			return nil
		}
		printKeys(out, keys)
		return nil
	},
}

func printKeys(w io.Writer, keys []api.KeyInfo) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No keys")
		return
	}
	fmt.Fprintln(w, "Keys:")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Local().Format(keyTimeFormat)
		}
		state := okLabel.Sprint("active")
		if !k.IsActive {
			state = errorLabel.Sprint("inactive")
		}
		fmt.Fprintf(w, "- %s  %-11s  created %s  expires %s  %s\n",
			k.Key, k.Plan, k.CreatedAt.Local().Format(keyTimeFormat), expires, state)
	}
}

func keyActionCmd(use, short, path, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " KEY",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			body, err := sjson.SetBytes([]byte(`{}`), "key", key)
			if err != nil {
				return err
			}
			if _, err := newClient(GetConfig()).Post(path, body, true); err != nil {
				return errors.Wrapf(err, "unable to %s key", use)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printResult(out, api.SuccessRsp{Success: true})
				return nil
			}
			okLabel.Fprintf(out, "%s %s\n", done, key)
			return nil
		},
	}
}

var keysInitCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the key table on the server if it is missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rsp, err := newClient(GetConfig()).Post("/api/admin/init-db", nil, true)
		if err != nil {
			return errors.Wrap(err, "unable to initialize database")
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			printResult(out, json.RawMessage(rsp))
			return nil
		}
		okLabel.Fprintln(out, gjson.GetBytes(rsp, "message").String())
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keyActionCmd("delete", "Delete a key", "/api/admin/delete-key", "Deleted"))
	keysCmd.AddCommand(keyActionCmd("deactivate", "Deactivate a key", "/api/admin/deactivate-key", "Deactivated"))
	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)
}
