package command

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/server"
)

func parseYearMonth(args []string) (int, int, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("year must be a number: %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("month must be a number: %q", args[1])
	}
	return year, month, nil
}

// NewUsageCmd creates the usage command.
func NewUsageCmd(dial Dialer) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <year> <month>",
		Short: "Show NP spent per customer in a JST month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonth(args)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			out, err := call(cmd, dial, server.MethodMonthlyUsage, map[string]any{"year": year, "month": month})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if done, err := printJSON(cmd, out); done {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tCUSTOMER\tNP")
			for i, row := range out.GetFields()["usage"].GetListValue().GetValues() {
				f := row.GetStructValue().GetFields()
				fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, f["customer_id"].GetStringValue(), int64(f["cost_np"].GetNumberValue()))
			}
			fmt.Fprintf(w, "\tTOTAL\t%d\n", int64(out.GetFields()["total_np"].GetNumberValue()))
			return w.Flush()
		},
	}
}

// NewBudgetCmd creates the budget command.
func NewBudgetCmd(dial Dialer) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show the NP left this month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(cmd, dial, server.MethodRemainingBudget, map[string]any{})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if done, err := printJSON(cmd, out); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d NP remaining\n", int64(out.GetFields()["remaining_np"].GetNumberValue()))
			return nil
		},
	}
}

// NewCredentialsCmd creates the credentials command.
func NewCredentialsCmd(dial Dialer) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials <cookie-header>",
		Short: "Replace the NAGA session cookies",
		Long:  "Replace the NAGA session cookies. The argument is a Cookie header copied from a logged-in browser.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cookies := common.ParseCookies(args[0])
			if err := common.ValidateCookies(cookies); err != nil {
				return writeCommandError(cmd, err)
			}
			if _, err := call(cmd, dial, server.MethodSetCredentials, map[string]any{"cookie_header": args[0]}); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials updated")
			return nil
		},
	}
}

// NewExportCmd creates the export command.
func NewExportCmd(dial Dialer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <year> <month>",
		Short: "Write the usage of a JST month to an XLSX file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonth(args)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = fmt.Sprintf("naga-usage-%04d-%02d.xlsx", year, month)
			}
			out, err := call(cmd, dial, server.MethodExportUsage, map[string]any{"year": year, "month": month})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			b, err := base64.StdEncoding.DecodeString(out.GetFields()["xlsx"].GetStringValue())
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("decode workbook: %w", err))
			}
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(b))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output file")
	return cmd
}
