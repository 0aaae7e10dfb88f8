package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: fixctl <command> [flags]

commands:
  dict     list dictionaries, messages or a message layout
  decode   decode FIX frames from a file or stdin into JSON lines
  encode   encode JSON message mirrors into FIX frames
  tail     decode frames from a TCP peer (-addr) or listener (-listen)
  serve    run the HTTP inspector
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1], os.Args[2:], os.Stdin, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, stdin io.Reader, stdout io.Writer) error {
	switch cmd {
	case "dict":
		return runDict(args, stdout)
	case "decode":
		return runDecode(args, stdin, stdout)
	case "encode":
		return runEncode(args, stdin, stdout)
	case "tail":
		return runTail(ctx, args, stdout)
	case "serve":
		return runServe(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}
