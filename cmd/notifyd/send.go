package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

var (
	sendServer      string
	sendTopic       string
	sendDescription string
	sendTimeout     time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send TITLE",
	Short: "Push a notification through a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := postNotification(sendServer, sendTopic, args[0], sendDescription, sendTimeout); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sent")
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendServer, "server", "http://localhost:8090", "base URL of the notification server")
	sendCmd.Flags().StringVarP(&sendTopic, "topic", "t", "", "topic to publish to (default: every client)")
	sendCmd.Flags().StringVarP(&sendDescription, "description", "d", "", "notification body")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "request timeout")
}

// postNotification calls POST /notify on server.
func postNotification(server, topic, title, description string, timeout time.Duration) error {
	body, err := json.Marshal(map[string]string{
		"topic":       topic,
		"title":       title,
		"description": description,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(server, "/") + "/notify")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusAccepted {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server rejected notification (%d): %s", resp.StatusCode(), apiErr.Message)
		}
		return errors.New("server rejected notification: " + fasthttp.StatusMessage(resp.StatusCode()))
	}
	return nil
}
