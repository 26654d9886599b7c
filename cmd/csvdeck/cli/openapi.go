package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csvdeck/csvdeck/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 document the server publishes at /openapi.json,
including a typed row schema and paths for every uploaded table.`,
		Example: `  csvdeck openapi                       # print to stdout
  csvdeck openapi -o openapi.json        # write to file
  csvdeck openapi --base-url https://data.example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(cmd, outputFile, baseURL)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL in the spec (default: http://<host>:<port>)")

	return cmd
}

func runOpenAPI(cmd *cobra.Command, outputFile, baseURL string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", displayHost(viper.GetString("server.host")), viper.GetInt("server.port"))
	}
	doc := openapi.Generate(eng.tables.List(), baseURL, versionString())

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	if outputFile == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(outputFile, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d tables)\n", outputFile, len(eng.tables.List()))
	return nil
}
