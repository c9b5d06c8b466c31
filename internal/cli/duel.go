package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newDuelCmd() *cobra.Command {
	var guess []float64

	cmd := &cobra.Command{
		Use:   "duel",
		Short: "Queue for a public duel and play it out",
		Long: `Queue for a public duel and stay connected until the session shuts down.

Each round the same final guess (--guess lat,long) is placed as soon as
guessing opens. Duels between two accounts are ranked; the new rating is
printed when the duel ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(guess) != 2 {
				return fmt.Errorf("--guess needs exactly two values: lat,long")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			guessed := 0
			return stream(ctx, map[string]any{"type": "publicDuel"}, func(socket *Socket, frame Frame) (bool, error) {
				switch frame.Type() {
				case "game":
					round := frame.Int("curRound")
					if frame.String("state") != "guess" || round == guessed {
						return false, nil
					}
					guessed = round
					return false, socket.Send(map[string]any{
						"type":    "place",
						"latLong": guess,
						"final":   true,
						"round":   round,
					})
				case "elo":
					fmt.Printf("New rating: %d (%s)\n", frame.Int("elo"), frame.String("league"))
				case "gameShutdown":
					return true, nil
				}
				return false, nil
			})
		},
	}

	cmd.Flags().Float64SliceVar(&guess, "guess", []float64{0, 0}, "Guess placed every round as lat,long")

	return cmd
}
