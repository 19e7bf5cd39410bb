// Command jrpc sends JSON-RPC 2.0 calls from the command line.
//
//	jrpc [flags] call <method> [params...]
//	jrpc [flags] notify <method> [params...]
//	jrpc [flags] batch < calls.json
//
// Each positional param is parsed as JSON when it is valid JSON and sent as a string
// otherwise. A single JSON object param is sent as named params. A batch is read from
// stdin as [{"method": "...", "params": [...]}, ...].
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mini-jsonrpc/client"
	"mini-jsonrpc/config"
	"mini-jsonrpc/logger"
	"mini-jsonrpc/message"
)

const (
	exitOK = iota
	exitError
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jrpc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	envFile := fs.String("env", ".env", "dotenv file with JRPC_* overrides, ignored when missing")
	verbose := fs.Bool("v", false, "log requests and responses to stderr")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: jrpc [flags] call|notify <method> [params...] | batch")
		return exitUsage
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "load %s: %v\n", *envFile, err)
		return exitError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitError
	}
	if *verbose {
		cfg.Middleware.Log = true
		cfg.Middleware.Verbose = true
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development, Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return exitError
	}
	defer log.Sync()

	c, err := config.Build(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build client: %v\n", err)
		return exitError
	}
	defer c.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "call", "notify":
		if len(rest) < 1 {
			fmt.Fprintf(stderr, "usage: jrpc %s <method> [params...]\n", cmd)
			return exitUsage
		}
		params := parseParams(rest[1:])
		if cmd == "notify" {
			err = c.Notify(ctx, rest[0], params)
			break
		}
		var result json.RawMessage
		result, err = c.Call(ctx, rest[0], params)
		if err == nil {
			writeJSON(stdout, result)
		}
	case "batch":
		err = runBatch(ctx, c, stdin, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return exitUsage
	}

	if err != nil {
		log.Debug("command failed", zap.String("command", cmd), zap.Error(err))
		if rpcErr, ok := client.IsRPC(err); ok {
			fmt.Fprintf(stderr, "error code: %d\nerror message:\n%s\n", rpcErr.Code, rpcErr.Message)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return exitError
	}
	return exitOK
}

func runBatch(ctx context.Context, c *client.Client, stdin io.Reader, stdout io.Writer) error {
	var entries []struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(stdin).Decode(&entries); err != nil {
		return fmt.Errorf("read batch from stdin: %w", err)
	}

	calls := make([]client.BatchCall, len(entries))
	for i, e := range entries {
		calls[i] = client.BatchCall{Method: e.Method}
		if len(e.Params) > 0 {
			calls[i].Params = e.Params
		}
	}

	res, err := c.CallBatch(ctx, calls)
	if err != nil {
		return err
	}

	type entry struct {
		ID     message.ID      `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	out := make([]entry, res.Len())
	for i, id := range res.IDs() {
		o := res.At(i)
		out[i] = entry{ID: id, Method: calls[i].Method, Result: o.Result}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	writeJSON(stdout, raw)
	return res.Err()
}

func parseParams(args []string) any {
	if len(args) == 0 {
		return nil
	}
	if len(args) == 1 {
		raw := bytes.TrimSpace([]byte(args[0]))
		if len(raw) > 0 && raw[0] == '{' && json.Valid(raw) {
			return json.RawMessage(raw)
		}
	}
	values := make([]any, len(args))
	for i, a := range args {
		if json.Valid([]byte(a)) {
			values[i] = json.RawMessage(a)
		} else {
			values[i] = a
		}
	}
	return message.Positional(values...)
}

// writeJSON prints indented JSON; strings are printed bare, like bitcoin-cli.
func writeJSON(w io.Writer, raw json.RawMessage) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		fmt.Fprintln(w, s)
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(w, string(raw))
		return
	}
	fmt.Fprintln(w, buf.String())
}
