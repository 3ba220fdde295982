// Copyright 2025 Matt Barlow
//
// bridge-tool - command line client for a running macbridge server
// using the HTTP/SSE transport

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "bridge-tool",
		Short:         "Client for a macbridge automation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "bridge server base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(listCmd(), callCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tools the server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := rpc("tools/list", nil)
			if err != nil {
				return err
			}
			var parsed struct {
				Tools []struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"tools"`
			}
			if err := json.Unmarshal(result, &parsed); err != nil {
				return fmt.Errorf("unexpected tools/list result: %w", err)
			}
			for _, t := range parsed.Tools {
				fmt.Printf("%-24s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Invoke a tool with JSON arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments must be valid JSON: %s", args[1])
				}
				arguments = json.RawMessage(args[1])
			}

			result, err := rpc("tools/call", map[string]any{
				"name":      args[0],
				"arguments": arguments,
			})
			if err != nil {
				return err
			}

			var parsed struct {
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
				IsError bool `json:"isError"`
			}
			if err := json.Unmarshal(result, &parsed); err != nil {
				return fmt.Errorf("unexpected tools/call result: %w", err)
			}
			for _, c := range parsed.Content {
				fmt.Println(c.Text)
			}
			if parsed.IsError {
				return fmt.Errorf("tool reported an error")
			}
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server's health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			resp, err := client.Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Println(string(bytes.TrimSpace(body)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			return nil
		},
	}
}

// rpc sends one JSON-RPC request to the server's /message endpoint and
// returns the result payload.
func rpc(method string, params any) (json.RawMessage, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(serverURL+"/message", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
