package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"text/tabwriter"

	"github.com/alexbleotu/ferrumfix/internal/auth"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
	"github.com/alexbleotu/ferrumfix/internal/protocol/transport"
	"github.com/alexbleotu/ferrumfix/internal/server"
)

func runDict(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("dict", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.load("dict")
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	switch fs.NArg() {
	case 0:
		fmt.Fprintln(tw, "ID\tBEGINSTRING\tMESSAGES\tFIELDS\tDEPTH")
		for _, id := range a.reg.IDs() {
			d, _ := a.reg.Lookup(id)
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", d.ID, d.BeginString, len(d.Messages()), len(d.Fields()), d.MaxDepth())
		}
		return nil
	case 1:
		d, err := a.pinned(fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "TYPE\tNAME\tCATEGORY")
		for _, m := range d.Messages() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Type, m.Name, m.Category)
		}
		return nil
	default:
		d, err := a.pinned(fs.Arg(0))
		if err != nil {
			return err
		}
		def, ok := d.Message(fs.Arg(1))
		if !ok {
			def, ok = d.MessageByName(fs.Arg(1))
		}
		if !ok {
			return fmt.Errorf("%s: no message %q", d.ID, fs.Arg(1))
		}
		fmt.Fprintf(tw, "%s %s (%s)\n", def.Type, def.Name, d.ID)
		for _, s := range []struct {
			name   string
			layout *dictionary.Layout
		}{{"header", def.Header}, {"body", def.Body}, {"trailer", def.Trailer}} {
			fmt.Fprintf(tw, "[%s]\n", s.name)
			printLayout(tw, d, s.layout, 0)
		}
		return nil
	}
}

func printLayout(w io.Writer, d *dictionary.Dictionary, l *dictionary.Layout, depth int) {
	if l == nil {
		return
	}
	for _, e := range l.Entries {
		req := ""
		if e.Required {
			req = "required"
		}
		typ := ""
		if f, ok := d.Field(e.Tag); ok {
			typ = f.Type.String()
		}
		fmt.Fprintf(w, "%*s%d\t%s\t%s\t%s\n", depth*2, "", e.Tag, e.Name, typ, req)
		if e.Group != nil {
			printLayout(w, d, e.Group.Layout, depth+1)
		}
	}
}

// sink writes decoded messages as JSON lines or delimited text.
type sink struct {
	w      io.Writer
	enc    *json.Encoder
	text   bool
	delim  byte
	dictOf func(*protocol.Message) *dictionary.Dictionary
}

func newSink(w io.Writer, format string, delim byte, dictOf func(*protocol.Message) *dictionary.Dictionary) (*sink, error) {
	switch format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("unknown format %q (json|text)", format)
	}
	return &sink{w: w, enc: json.NewEncoder(w), text: format == "text", delim: delim, dictOf: dictOf}, nil
}

func (s *sink) write(msg *protocol.Message) error {
	if s.text {
		_, err := fmt.Fprintln(s.w, msg.Format(s.delim))
		return err
	}
	return s.enc.Encode(protocol.NewMirror(s.dictOf(msg), msg))
}

func runDecode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	var c common
	c.register(fs)
	format := fs.String("format", "json", "output format: json|text")
	strict := fs.Bool("strict", false, "fail on the first invalid frame")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.load("decode")
	if err != nil {
		return err
	}
	in := stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	dec, dictOf, err := a.decoder(c.dict)
	if err != nil {
		return err
	}
	out, err := newSink(stdout, *format, '|', dictOf)
	if err != nil {
		return err
	}
	limits, err := a.limits()
	if err != nil {
		return err
	}

	r := frame.NewReader(in, dec, limits)
	var decoded, dropped int
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			a.log.Warn().Int("bytes", r.Framer().Buffered()).Msg("input ends inside a frame")
			break
		}
		if err != nil {
			return err
		}
		switch ev.Kind {
		case frame.EventMessage:
			decoded++
			if err := out.write(ev.Message); err != nil {
				return err
			}
		case frame.EventError:
			dropped++
			a.log.Warn().Str("kind", ev.Err.Kind.String()).Int("tag", ev.Err.Tag).Int("bytes", ev.Size).Err(ev.Err).Msg("invalid frame")
			if *strict {
				return ev.Err
			}
		case frame.EventFatal:
			return ev.Err
		}
	}
	a.log.Debug().Int("decoded", decoded).Int("dropped", dropped).Msg("decode finished")
	return nil
}

// runEncode reads a stream of JSON message mirrors and writes one frame per
// mirror.
func runEncode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.load("encode")
	if err != nil {
		return err
	}
	in := stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	jd := json.NewDecoder(in)
	var buf []byte
	for n := 1; ; n++ {
		var m protocol.MessageMirror
		if err := jd.Decode(&m); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		d, enc, err := a.encoder(c.dict, m)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		msg, err := protocol.MirrorToMessage(d, m)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		buf, err = enc.AppendEncode(buf[:0], msg)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		if _, err := stdout.Write(buf); err != nil {
			return err
		}
	}
}

func runTail(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "dial a FIX peer at host:port")
	listen := fs.String("listen", "", "accept FIX connections on host:port")
	format := fs.String("format", "json", "output format: json|text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*addr == "") == (*listen == "") {
		return fmt.Errorf("tail: exactly one of -addr or -listen is required")
	}
	a, err := c.load("tail")
	if err != nil {
		return err
	}
	dec, dictOf, err := a.decoder(c.dict)
	if err != nil {
		return err
	}
	out, err := newSink(stdout, *format, '|', dictOf)
	if err != nil {
		return err
	}
	tc, err := a.cfg.Transport.Transport()
	if err != nil {
		return err
	}
	// The idle timeout would end a quiet tail.
	tc.ReadTimeout = 0

	events := make(chan *protocol.Message, 64)
	handler := func(ctx context.Context, ev frame.Event) error {
		if ev.Kind != frame.EventMessage {
			return nil
		}
		select {
		case events <- ev.Message:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	errCh := make(chan error, 1)
	if *addr != "" {
		nc, err := transport.Dial(ctx, *addr, tc)
		if err != nil {
			return err
		}
		conn := transport.New(nc, dec, nil, tc)
		a.log.Info().Str("addr", *addr).Str("conn_id", conn.ID()).Bool("tls", tc.TLS.Enabled).Msg("tailing peer")
		go func() { errCh <- conn.Run(ctx, handler) }()
	} else {
		ln, err := transport.Listen(*listen, tc)
		if err != nil {
			return err
		}
		a.log.Info().Str("listen", ln.Addr().String()).Msg("accepting connections")
		go func() {
			errCh <- transport.Serve(ctx, ln, func(nc net.Conn) (*transport.Conn, transport.Handler) {
				return transport.New(nc, dec, nil, tc), handler
			})
		}()
	}

	for {
		select {
		case msg := <-events:
			if err := out.write(msg); err != nil {
				return err
			}
		case err := <-errCh:
			for len(events) > 0 {
				if werr := out.write(<-events); werr != nil {
					return werr
				}
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "override server.addr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.load("serve")
	if err != nil {
		return err
	}
	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}
	limits, err := a.limits()
	if err != nil {
		return err
	}
	opts := []server.Option{server.WithLimits(limits)}
	if token := a.cfg.Server.AuthToken; token != "" {
		opts = append(opts, server.WithAuth(auth.StaticToken{Token: token}))
	}
	s := server.New(a.cfg.Server.Name, a.cfg.Server.Addr, a.dec, a.cfg.Server.CorsOrigins, opts...)
	return s.Serve(ctx)
}
