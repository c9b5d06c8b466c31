package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the game socket and print every frame",
		Long: `Connect to the game socket, verify with the saved account secret
(or as a guest), and print server frames as they arrive.

With --join the connection also joins the private session with that
room code, so its game state, guesses and chat are streamed.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var join map[string]any
			if code != "" {
				join = map[string]any{"type": "joinPrivateGame", "gameCode": code}
			}
			return stream(ctx, join, nil)
		},
	}

	cmd.Flags().StringVar(&code, "join", "", "Room code of a private session to join")

	return cmd
}

// stream verifies, sends first once verified, and prints frames until the
// connection ends. react, if set, sees each frame and reports when to stop.
func stream(ctx context.Context, first map[string]any, react func(*Socket, Frame) (bool, error)) error {
	socket, err := Dial(ctx, client.SocketURL(), cfg.Token, cfg.TimeZone)
	if err != nil {
		return err
	}
	defer func() { _ = socket.Close() }()

	out := NewOutput(cfg.Output)
	for {
		frame, err := socket.Next()
		if err != nil {
			if ctx.Err() != nil {
				if cfg.Output != "json" {
					fmt.Println("\nDisconnected")
				}
				return nil
			}
			return err
		}

		if cfg.Verbose || frame.Type() != "t" {
			out.PrintFrame(frame)
		}

		switch frame.Type() {
		case "error":
			return fmt.Errorf("server rejected connection: %s", frame.String("message"))
		case "verify":
			if first != nil {
				if err := socket.Send(first); err != nil {
					return err
				}
			}
		}

		if react != nil {
			done, err := react(socket, frame)
			if err != nil || done {
				return err
			}
		}
	}
}
