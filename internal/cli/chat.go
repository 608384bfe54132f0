package cli

import (
	"fmt"
	"strings"

	"github.com/keygate/keygate/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	chatKey         string
	chatModel       string
	chatMode        string
	chatTemperature float64
)

var chatCmd = &cobra.Command{
	Use:   "chat PROMPT...",
	Short: "Send a prompt through the server's gateway",
	Long: `Send a prompt through the server's gateway. The request is admitted only
with a valid license key, taken from --key or the CLI configuration.

Examples:
  keygate chat --key DARK-1A2B3C4D-PRE "explain TCP slow start"
  keygate chat --mode expert --model mistralai/mistral-7b-instruct "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: sendChat,
}

// chatBody builds the chat request, leaving out fields the user did not set.
func chatBody(cmd *cobra.Command, prompt, key string) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "prompt", prompt)
	if err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "license_key", key); err != nil {
		return nil, err
	}
	if chatModel != "" {
		if body, err = sjson.SetBytes(body, "model", chatModel); err != nil {
			return nil, err
		}
	}
	if chatMode != "" {
		if body, err = sjson.SetBytes(body, "mode", chatMode); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("temperature") {
		if body, err = sjson.SetBytes(body, "temperature", chatTemperature); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func sendChat(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(chatKey)
	if key == "" {
		key = GetConfig().LicenseKey
	}
	body, err := chatBody(cmd, strings.Join(args, " "), key)
	if err != nil {
		return err
	}

	rsp, err := newClient(GetConfig()).Post("/api/chat", body, false)
	if err != nil {
		return errors.Wrap(err, "chat failed")
	}
	reply := gjson.GetBytes(rsp, "reply").String()

	out := cmd.OutOrStdout()
	if jsonOutput {
		printResult(out, api.ChatRsp{Reply: reply})
		return nil
	}
	fmt.Fprintln(out, reply)
	return nil
}

func init() {
	chatCmd.Flags().StringVarP(&chatKey, "key", "k", "", "License key (defaults to license_key from the config)")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model requested from the secondary provider")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "Persona mode: normal, hacker, casual or expert")
	chatCmd.Flags().Float64VarP(&chatTemperature, "temperature", "t", 0, "Sampling temperature")
	rootCmd.AddCommand(chatCmd)
}
