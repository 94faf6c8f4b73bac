package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/nagabus/internal/server"
)

const AppName = "nagabus"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

// Caller sends one request to the analysis service.
type Caller interface {
	Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// Dialer connects to the daemon at addr.
type Dialer func(addr string) (Caller, io.Closer, error)

func grpcDialer(addr string) (Caller, io.Closer, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return server.NewAnalysisServiceClient(conn), conn, nil
}

func NewRootCmd(version string, dial Dialer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "nagabus - client for the NAGA order coordinator",
		Long:          "nagabus asks the coordinator daemon for NAGA analyses of tenhou.net and Majsoul games and reports NP usage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("addr", envOr("NAGABUS_ADDR", "localhost:8080"), "daemon address")
	cmd.PersistentFlags().String("customer", os.Getenv("NAGABUS_CUSTOMER"), "customer charged for new orders")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewMajsoulCmd(dial),
		NewTenhouCmd(dial),
		NewUsageCmd(dial),
		NewBudgetCmd(dial),
		NewCredentialsCmd(dial),
		NewExportCmd(dial),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd(Version, grpcDialer).Execute()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// call dials the daemon, sends in with the customer and a fresh request id as metadata,
// and returns the response.
func call(cmd *cobra.Command, dial Dialer, method string, in map[string]any) (*structpb.Struct, error) {
	addr, _ := cmd.Flags().GetString("addr")
	customer, _ := cmd.Flags().GetString("customer")

	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	client, closer, err := dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer closer.Close()

	ctx := metadata.AppendToOutgoingContext(cmd.Context(), server.MetadataRequestID, uuid.NewString())
	if customer != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, server.MetadataCustomerID, customer)
	}
	return client.Call(ctx, method, req)
}

func writeCommandError(cmd *cobra.Command, err error) error {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s (%s)\n", st.Message(), st.Code())
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	return err
}

// printJSON writes the response as indented JSON and reports whether --json was set.
func printJSON(cmd *cobra.Command, out *structpb.Struct) (bool, error) {
	asJSON, _ := cmd.Flags().GetBool("json")
	if !asJSON {
		return false, nil
	}
	b, err := json.MarshalIndent(out.AsMap(), "", "  ")
	if err != nil {
		return true, err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return true, nil
}
