package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the csvdeck server is running",
		Long:  "Check the background server's process state, its readiness check and how many tables it serves.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	pid, err := readPID()
	if err != nil {
		fmt.Println("Server is not running (no PID file found).")
		return nil
	}

	if !isProcessRunning(pid) {
		removePID()
		fmt.Println("Server is not running (stale PID file removed).")
		return nil
	}

	base := fmt.Sprintf("http://%s:%d", displayHost(viper.GetString("server.host")), viper.GetInt("server.port"))
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(base + "/readyz")
	if err != nil {
		fmt.Printf("Server process is running (PID %d) but not responding to HTTP.\n", pid)
		fmt.Printf("  Logs: %s\n", logFilePath())
		return nil
	}
	resp.Body.Close()

	fmt.Printf("Server is running (PID %d)\n", pid)
	fmt.Printf("  Ready:   %s/readyz (%d)\n", base, resp.StatusCode)
	if n, ok := tableCount(client, base); ok {
		fmt.Printf("  Tables:  %d\n", n)
	}
	fmt.Printf("  Logs:    %s\n", logFilePath())
	return nil
}

func tableCount(client *http.Client, base string) (int, bool) {
	resp, err := client.Get(base + "/tables")
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	var body struct {
		Tables []string `json:"tables"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}
	return len(body.Tables), true
}
