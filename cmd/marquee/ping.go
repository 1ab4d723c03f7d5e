package main

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/protocol/value"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	var (
		addr    string
		count   int
		retries int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Open a session and measure ping round trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runPing(ctx, cmd, addr, count, retries)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:7070", "server address (host:port or ws:// URL)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of pings")
	cmd.Flags().IntVar(&retries, "retries", 3, "dial attempts before giving up")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall timeout")
	return cmd
}

func runPing(ctx context.Context, cmd *cobra.Command, addr string, count, retries int) error {
	conn, err := transport.DialRetry(ctx, addr, protocol.DefaultCodec(), retries, transport.DefaultBackoff())
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	out := cmd.OutOrStdout()
	var id uint64
	call := func(t protocol.MessageType, args ...value.Value) (*protocol.Message, error) {
		id++
		if err := conn.WriteMessage(protocol.NewMessage(id, t, args...)); err != nil {
			return nil, err
		}
		reply, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if reply.IsError() {
			code, text, _ := protocol.ErrorDetails(reply)
			return nil, fmt.Errorf("server error %d: %s", code, text)
		}
		return reply, nil
	}

	welcome, err := call(protocol.MessageHello, value.String("marquee-cli"))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "connected to %s: %s\n", addr, value.Display(value.List(welcome.Args)))

	for i := 0; i < count; i++ {
		start := time.Now()
		if _, err := call(protocol.MessagePing, value.Long(start.UnixNano())); err != nil {
			return err
		}
		fmt.Fprintf(out, "pong seq=%d rtt=%s\n", i+1, time.Since(start))
	}

	_, err = call(protocol.MessageBye)
	return err
}
