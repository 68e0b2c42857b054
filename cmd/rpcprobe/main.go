// Command rpcprobe calls a JSON-RPC method on the masternode and prints the
// result. With -watch it polls the method the way the watcher does and
// prints every update.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/bitaek-watch/internal/model"
	"github.com/rickgao/bitaek-watch/internal/poller"
	"github.com/rickgao/bitaek-watch/internal/rpc"
)

func main() {
	endpoint := flag.String("endpoint", rpc.DefaultEndpoint, "JSON-RPC endpoint URL")
	method := flag.String("method", model.MethodGetBlocks, "method to call")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	watch := flag.Bool("watch", false, "poll until interrupted and print every update")
	interval := flag.Duration("interval", 0, "poll interval for -watch (default per method)")
	flag.Parse()

	client := rpc.NewClient(*endpoint, rpc.WithTimeout(*timeout))

	if *watch {
		cfg := poller.DefaultConfig(*method)
		cfg.Timeout = *timeout
		if *interval > 0 {
			cfg.Interval = *interval
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		if err := watchMethod(ctx, os.Stdout, client, cfg, logger); err != nil {
			fmt.Fprintf(os.Stderr, "watch %s: %v\n", *method, err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, os.Stdout, client, *method); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *method, err)
		os.Exit(1)
	}
}

// rawCaller is satisfied by *rpc.Client.
type rawCaller interface {
	CallRaw(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// probe performs one call and writes the indented result to w.
func probe(ctx context.Context, w io.Writer, c rawCaller, method string) error {
	start := time.Now()
	result, err := c.CallRaw(ctx, method)
	if err != nil {
		if rpcErr, ok := rpc.IsRPCError(err); ok {
			return fmt.Errorf("server returned error %d: %s", rpcErr.Code, rpcErr.Message)
		}
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}

	fmt.Fprintf(w, "=== %s (%v) ===\n", method, time.Since(start).Round(time.Millisecond))
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}

// watchMethod prints a line per store update until ctx is done.
func watchMethod(ctx context.Context, w io.Writer, c poller.Caller, cfg poller.Config, logger *slog.Logger) error {
	store, err := poller.NewRecordsStore(cfg, c, logger)
	if err != nil {
		return err
	}

	updates := make(chan model.Records, 16)
	unsub := store.Subscribe(func(r model.Records) {
		select {
		case updates <- r:
		default:
		}
	})

	fmt.Fprintf(w, "watching %s every %v\n", cfg.Method, cfg.Interval)

	n := 0
	for {
		select {
		case <-ctx.Done():
			unsub()
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			st := store.Status()
			fmt.Fprintf(w, "%d updates, %d polls, %d failures\n", n, st.Polls, st.Failures)
			return store.Close(closeCtx)

		case r := <-updates:
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode update: %w", err)
			}
			fmt.Fprintf(w, "%s %d records %s\n", time.Now().Format(time.TimeOnly), r.Len(), data)
			n++
		}
	}
}
