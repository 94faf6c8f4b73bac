package command

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/nagabus/internal/server"
)

// NewMajsoulCmd creates the majsoul command.
func NewMajsoulCmd(dial Dialer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "majsoul <replay> <round>",
		Short: "Analyse one round of a Majsoul replay",
		Long:  "Analyse one round of a Majsoul replay. The round is written like E1, S3-1 or 东二局1本场.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{"ref": args[0], "round": args[1]}
			if model, _ := cmd.Flags().GetString("model"); model != "" {
				in["model"] = model
			}
			out, err := call(cmd, dial, server.MethodAnalyzeMajsoul, in)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, out)
		},
	}
	cmd.Flags().String("model", "", "model name (defaults to nishiki, or sigma for east-only games)")
	return cmd
}

// NewTenhouCmd creates the tenhou command.
func NewTenhouCmd(dial Dialer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenhou <log>",
		Short: "Analyse a tenhou.net game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{"ref": args[0]}
			if cmd.Flags().Changed("seat") {
				seat, _ := cmd.Flags().GetInt("seat")
				in["seat"] = seat
			}
			if model, _ := cmd.Flags().GetString("model"); model != "" {
				in["model"] = model
			}
			out, err := call(cmd, dial, server.MethodAnalyzeTenhou, in)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printResult(cmd, out)
		},
	}
	cmd.Flags().Int("seat", 0, "seat to view the report from (0-3)")
	cmd.Flags().String("model", "", "model name (defaults to nishiki)")
	return cmd
}

func printResult(cmd *cobra.Command, out *structpb.Struct) error {
	if done, err := printJSON(cmd, out); done {
		return err
	}
	f := out.GetFields()
	fmt.Fprintln(cmd.OutOrStdout(), f["url"].GetStringValue())
	if cost := int64(f["cost_np"].GetNumberValue()); cost > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "charged %d NP\n", cost)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "served from an existing order, nothing charged")
	}
	return nil
}
