package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/simplesapien/redirect-resolver/packages/crawler"
	"github.com/simplesapien/redirect-resolver/packages/domain"
	"github.com/simplesapien/redirect-resolver/packages/logging"
	"github.com/simplesapien/redirect-resolver/packages/resolver"
	"github.com/simplesapien/redirect-resolver/packages/worker"
)

type rootOptions struct {
	timeout     time.Duration
	concurrency int
	json        bool
	trace       bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "resolve [url...]",
		Short: "Resolve URLs to their final destination",
		Long: `Follows HTTP redirects and HTML redirect signals (canonical links,
meta refresh, script navigation) and prints the final URL of each input.
URLs are read from stdin, one per line, when none are given as arguments.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args)
		},
	}
	cmd.Flags().DurationVar(&opts.timeout, "timeout", crawler.DefaultTimeout, "timeout for each fetch")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 4, "number of URLs resolved in parallel")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "print every fetch round")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *rootOptions, args []string) error {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logging.Setup(logging.Options{Level: level, Stdout: cmd.ErrOrStderr()})

	urls := args
	if len(urls) == 0 {
		var err error
		if urls, err = readURLs(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("read urls: %w", err)
		}
	}
	if len(urls) == 0 {
		return fmt.Errorf("no urls given")
	}

	c, err := crawler.New(crawler.Options{Timeout: opts.timeout})
	if err != nil {
		return err
	}
	pool := worker.New(resolver.New(c), opts.concurrency)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.trace {
		return runTrace(ctx, cmd.OutOrStdout(), pool, urls)
	}

	items := pool.ResolveAll(ctx, urls)
	if opts.json {
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		for _, item := range items {
			if item.Err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s !! %s\n", item.OriginalURL, item.Error)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", item.OriginalURL, item.FinalURL)
		}
	}
	return failures(items)
}

func runTrace(ctx context.Context, out io.Writer, pool *worker.Pool, urls []string) error {
	items := make([]domain.BatchItem, len(urls))
	for i, u := range urls {
		items[i].OriginalURL = u
		res, err := pool.Resolve(ctx, u)
		if err != nil {
			items[i].Err = err
			fmt.Fprintf(out, "%s !! %v\n", u, err)
			continue
		}
		items[i].FinalURL = res.FinalURL
		fmt.Fprintln(out, u)
		for n, hop := range res.Hops {
			line := fmt.Sprintf("  [%d] %s -> %s (%d)", n, hop.URL, hop.FinalURL, hop.StatusCode)
			if hop.Signal != "" {
				line += " via " + string(hop.Signal)
			}
			fmt.Fprintln(out, line)
		}
		if res.MaxDepthReached {
			fmt.Fprintln(out, "  max redirect depth reached")
		}
		fmt.Fprintf(out, "  = %s\n", res.FinalURL)
	}
	return failures(items)
}

func failures(items []domain.BatchItem) error {
	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d urls failed", failed, len(items))
	}
	return nil
}

func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
