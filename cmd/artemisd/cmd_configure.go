package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"artemis-core/internal/prefixtree"
)

var configureHost string

var configureCmd = &cobra.Command{
	Use:   "configure <file>",
	Short: "Push a YAML configuration document to a running control plane",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureCmd,
}

func init() {
	configureCmd.Flags().StringVar(&configureHost, "host", "localhost:3000", "control-plane host:port to configure")
}

func runConfigureCmd(_ *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	var doc prefixtree.ConfigDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse configuration file: %w", err)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode configuration document: %w", err)
	}

	url := fmt.Sprintf("http://%s/config", configureHost)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach control plane at %s: %w", configureHost, err)
	}
	defer resp.Body.Close()

	var result prefixtree.CompileResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse control-plane response: %w", err)
	}

	fmt.Printf("success=%v message=%q\n", result.Success, result.Message)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}
