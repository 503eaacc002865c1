// linkctl drives the device-linking client from the command line: pair with a
// desktop payload, run tasks over the link, and inspect the progress ledger.
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/sha3"

	"github.com/zelara-ai/app-mobile/internal/link"
	"github.com/zelara-ai/app-mobile/internal/metrics"
	"github.com/zelara-ai/app-mobile/internal/pairing"
	"github.com/zelara-ai/app-mobile/internal/pending"
	"github.com/zelara-ai/app-mobile/internal/progress"
)

const validationPoints = 10

var (
	flagPayload    string
	flagDataDir    string
	flagInsecure   bool
	flagMetricsOut string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "pair with a desktop and run linked tasks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flagPayload, "payload", "", "pairing payload from the desktop QR code")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", defaultDataDir(), "directory for the progress ledger")
	root.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "skip TLS verification on the link")
	root.PersistentFlags().StringVar(&flagMetricsOut, "metrics-out", "", "write a link metrics snapshot to this file after the command")
	root.AddCommand(newPairCmd(), newSendCmd(), newProgressCmd())
	return root
}

func newPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <payload>",
		Short: "decode and validate a pairing payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pairing.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("port: %d\n", p.Port)
			fmt.Printf("candidates (%d, tried in order):\n", len(p.Candidates))
			for _, c := range p.Candidates {
				fmt.Printf("  %s\n", c.Addr())
			}
			fp := sha3.Sum224([]byte(p.Token))
			fmt.Printf("token fingerprint: %s\n", hex.EncodeToString(fp[:6]))
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	send := &cobra.Command{
		Use:   "send",
		Short: "run a task over the link",
	}

	validation := &cobra.Command{
		Use:   "validation <image-file>",
		Short: "validate an image and credit the ledger on success",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				res, err := c.SendImageValidation(ctx, base64.StdEncoding.EncodeToString(image))
				if err != nil {
					return err
				}
				fmt.Printf("confidence: %.2f\n", res.Confidence)
				fmt.Printf("message: %s\n", res.Message)
				if res.Confidence < 0.5 {
					return nil
				}
				store, err := openStore()
				if err != nil {
					return err
				}
				// The image hash makes re-scanning the same photo a no-op.
				sum := sha3.Sum256(image)
				award, err := store.AwardPoints(validationPoints, "scan-"+hex.EncodeToString(sum[:8]))
				if err != nil {
					return err
				}
				fmt.Printf("points: %d\n", award.NewTotal)
				for _, name := range award.NewlyUnlocked {
					fmt.Printf("unlocked: %s (run `linkctl progress unlock %s`)\n", name, name)
				}
				return nil
			})
		},
	}

	invert := &cobra.Command{
		Use:   "invert <image-file>",
		Short: "round-trip an image through the inversion test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				res, err := c.SendImageInversionTest(ctx, base64.StdEncoding.EncodeToString(image))
				if err != nil {
					return err
				}
				fmt.Printf("inverted %d base64 bytes\n", len(res.InvertedImage))
				return nil
			})
		},
	}

	counter := &cobra.Command{
		Use:   "counter <delta>",
		Short: "bump the desktop item counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				res, err := c.SendCounterUpdate(ctx, delta)
				if err != nil {
					return err
				}
				fmt.Printf("counter total: %d\n", res.Total)
				return nil
			})
		},
	}

	send.AddCommand(validation, invert, counter)
	return send
}

func newProgressCmd() *cobra.Command {
	prog := &cobra.Command{
		Use:   "progress",
		Short: "inspect or mutate the unlock ledger",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "print the progress record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			rec := store.LoadProgress()
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			if next := store.GetNextUnlockProgress(); next != nil {
				fmt.Printf("next unlock: %s at %d points (%d/%d, %.0f%%)\n",
					next.ModuleName, next.RequiredPoints, next.CurrentPoints, next.RequiredPoints, next.Fraction*100)
			}
			return nil
		},
	}

	unlock := &cobra.Command{
		Use:   "unlock <module>",
		Short: "activate an available module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.UnlockModule(args[0]); err != nil {
				return err
			}
			fmt.Printf("unlocked %s\n", args[0])
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "restore the default ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.ResetProgress(); err != nil {
				return err
			}
			fmt.Println("progress reset")
			return nil
		},
	}

	prog.AddCommand(show, unlock, reset)
	return prog
}

// withClient connects using the pairing payload flag, runs fn, disconnects.
func withClient(ctx context.Context, fn func(context.Context, *link.Client) error) error {
	if flagPayload == "" {
		return fmt.Errorf("--payload is required (scan the desktop QR code)")
	}
	p, err := pairing.Parse(flagPayload)
	if err != nil {
		return err
	}
	tbl := pending.New()
	m := metrics.New()
	mgr := link.NewManager(&link.QUICDialer{Insecure: flagInsecure}, tbl, m)
	if err := mgr.Connect(ctx, p.Candidates, p.Token); err != nil {
		return err
	}
	defer mgr.Disconnect()
	err = fn(ctx, link.NewClient(mgr, tbl, m))
	if werr := m.WriteSnapshot(flagMetricsOut); werr != nil {
		fmt.Fprintf(os.Stderr, "metrics snapshot write failed: %v\n", werr)
	}
	return err
}

func openStore() (*progress.Store, error) {
	kv, err := progress.NewFileKV(flagDataDir)
	if err != nil {
		return nil, err
	}
	return progress.NewStore(kv, progress.DefaultConfig()), nil
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "zelara")
}
