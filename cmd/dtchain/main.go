package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/designtech/dtchain/internal/codec"
	"github.com/designtech/dtchain/internal/config"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/designtech/dtchain/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand of one invocation.
type app struct {
	cfgFile   string
	serverURL string
	verbose   bool

	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "dtchain",
		Short: "Build and verify hash-chained design records",
		Long: `dtchain builds hash-chained ledgers of design records and verifies them.

Chains are built locally unless --server points at a dtchaind instance:

  dtchain build --count 10 --format json --out chain.json
  dtchain verify chain.json
  dtchain --server http://localhost:8080 build --count 5`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./configs/dtchain.yaml)")
	pf.StringVar(&a.serverURL, "server", "", "dtchaind base URL; build locally when empty")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")
	pf.String("algorithm", "", "digest algorithm (sha256, sha512, sha3-256, blake2b-256)")
	_ = a.v.BindPFlag("ledger.algorithm", pf.Lookup("algorithm"))

	root.AddCommand(
		a.buildCmd(),
		a.verifyCmd(),
		a.extendCmd(),
		a.digestCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	}
	cfg, err := config.Load(a.v, "dtchain")
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = zap.NewNop()
	if a.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.logger = l
	}
	return nil
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.serverURL, client.WithTimeout(30*time.Second))
}

// ── build ────────────────────────────────────────────────────────────────────

func (a *app) buildCmd() *cobra.Command {
	var (
		count  int
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a fresh chain",
		Long: `Build produces a chain of --count records: a genesis record followed by
count-1 successors. A count of 0 produces an empty chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", count)
			}
			doc, err := a.build(cmd.Context(), count)
			if err != nil {
				return err
			}
			return a.writeDocument(cmd.OutOrStdout(), out, format, doc)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of records")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or cbor")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) build(ctx context.Context, count int) (codec.Document, error) {
	if a.serverURL != "" {
		c, err := a.client()
		if err != nil {
			return codec.Document{}, err
		}
		res, err := c.BuildChain(ctx, count)
		if err != nil {
			return codec.Document{}, fmt.Errorf("remote build: %w", err)
		}
		return res.Document, nil
	}

	factory, err := a.cfg.Factory()
	if err != nil {
		return codec.Document{}, err
	}
	chain, err := ledger.NewBuilder(factory, a.logger).Build(count)
	if err != nil {
		return codec.Document{}, err
	}
	return codec.FromChain(factory.Engine().Algorithm(), chain), nil
}

// ── verify ───────────────────────────────────────────────────────────────────

func (a *app) verifyCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify every link of a chain document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0], format)
			if err != nil {
				return err
			}
			root, n, err := a.verify(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "OK  empty chain")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK  %d records  %s  root %s\n", n, doc.Algorithm, root)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: json or cbor (default from file extension)")
	return cmd
}

var errChainInvalid = errors.New("chain is invalid")

func (a *app) verify(ctx context.Context, doc codec.Document) (root string, records int, err error) {
	if a.serverURL != "" {
		c, err := a.client()
		if err != nil {
			return "", 0, err
		}
		res, err := c.VerifyChain(ctx, doc)
		if err != nil {
			return "", 0, fmt.Errorf("remote verify: %w", err)
		}
		if !res.Valid {
			return "", 0, fmt.Errorf("%w: %s", errChainInvalid, res.Error)
		}
		return res.Root, res.Records, nil
	}

	chain, engine, err := doc.Chain()
	if err != nil {
		return "", 0, err
	}
	if err := ledger.Verify(engine, chain); err != nil {
		a.logger.Debug("verification failed", zap.Error(err))
		return "", 0, fmt.Errorf("%w: %v", errChainInvalid, err)
	}
	return chain.Root().Hex(), chain.Len(), nil
}

// ── extend ───────────────────────────────────────────────────────────────────

func (a *app) extendCmd() *cobra.Command {
	var (
		payloads []string
		format   string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "extend <file> --payload p [--payload p...]",
		Short: "Verify a chain and append records to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(payloads) == 0 {
				return errors.New("at least one --payload is required")
			}
			doc, err := readDocument(args[0], "")
			if err != nil {
				return err
			}
			ext, err := a.extend(cmd.Context(), doc, payloads)
			if err != nil {
				return err
			}
			if format == "" {
				format = codec.FormatFromPath(args[0])
			}
			return a.writeDocument(cmd.OutOrStdout(), out, format, ext)
		},
	}
	cmd.Flags().StringArrayVarP(&payloads, "payload", "p", nil, "payload of a new record (repeatable)")
	cmd.Flags().StringVar(&format, "format", "", "output format: text, json or cbor (default from input file)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) extend(ctx context.Context, doc codec.Document, payloads []string) (codec.Document, error) {
	if a.serverURL != "" {
		c, err := a.client()
		if err != nil {
			return codec.Document{}, err
		}
		res, err := c.ExtendChain(ctx, doc, payloads...)
		if err != nil {
			return codec.Document{}, fmt.Errorf("remote extend: %w", err)
		}
		return res.Document, nil
	}

	chain, engine, err := doc.Chain()
	if err != nil {
		return codec.Document{}, err
	}
	if err := ledger.Verify(engine, chain); err != nil {
		return codec.Document{}, fmt.Errorf("%w: %v", errChainInvalid, err)
	}
	factory := ledger.NewFactory(engine, ledger.WithGenesisPayload(a.cfg.Ledger.GenesisPayload))
	extended, err := ledger.NewBuilder(factory, a.logger).Extend(chain, payloads...)
	if err != nil {
		return codec.Document{}, err
	}
	return codec.FromChain(engine.Algorithm(), extended), nil
}

// ── digest ───────────────────────────────────────────────────────────────────

func (a *app) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <text>",
		Short: "Print the digest of a piece of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.serverURL != "" {
				c, err := a.client()
				if err != nil {
					return err
				}
				res, err := c.Digest(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("remote digest: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bits)  %s\n", res.Algorithm, res.Bits, res.Digest)
				return nil
			}

			engine, err := a.cfg.Engine()
			if err != nil {
				return err
			}
			d, err := engine.Sum([]byte(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bits)  %s\n", engine.Algorithm(), engine.Bits(), d.Hex())
			return nil
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dtchain version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dtchain %s\n", version)
		},
	}
}

// ── output ───────────────────────────────────────────────────────────────────

func readDocument(path, format string) (codec.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return codec.Document{}, err
	}
	defer f.Close()

	if format == "" {
		format = codec.FormatFromPath(path)
	}
	doc, err := codec.Decode(f, format)
	if err != nil {
		return codec.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return doc, nil
}

func (a *app) writeDocument(stdout io.Writer, path, format string, doc codec.Document) (err error) {
	w := stdout
	if path != "" {
		var f *os.File
		f, err = os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if format == "text" {
		return printText(w, doc)
	}
	if err := codec.Encode(w, format, doc); err != nil {
		return err
	}
	if path != "" {
		a.logger.Info("chain written", zap.String("path", path), zap.Int("records", len(doc.Records)))
	}
	return nil
}

func printText(w io.Writer, doc codec.Document) error {
	chain, _, err := doc.Chain()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIMESTAMP\tPAYLOAD\tDIGEST\tPREVIOUS")
	for _, v := range chain.Render() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Index, v.Timestamp, v.Payload, v.Digest, v.PreviousDigest)
	}
	return tw.Flush()
}
