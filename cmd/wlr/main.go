// wlr CLI - evaluates expressions, runs a REPL or serves a runtime remotely
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/wlr/lib/runtime"
	"github.com/chazu/wlr/manifest"
	"github.com/chazu/wlr/server"
)

func main() {
	configDir := flag.String("config", ".", "Directory to search upwards for wlr.toml")
	expr := flag.String("e", "", "Evaluate an expression and print the result")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	serveMode := flag.Bool("serve", false, "Serve the runtime (Connect, gRPC and gRPC-Web)")
	servePort := flag.Int("port", 0, "Server port (default from wlr.toml, else 8765)")
	contained := flag.Bool("contained", false, "Refuse file and environment access from evaluated code")
	genSignature := flag.String("gen-signature", "", "Write a new random signature to file and exit")
	verbosity := flag.Int("v", 0, "Log verbosity (0 errors only, higher is noisier)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wlr [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Starts a runtime, evaluates the given source files, then runs the requested mode.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  wlr -i                     # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  wlr -e 'Table[i^2, {i, 5}]'\n")
		fmt.Fprintf(os.Stderr, "  wlr init.wl -serve -port 9000\n")
		fmt.Fprintf(os.Stderr, "  wlr -gen-signature app.sig\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if *genSignature != "" {
		if err := writeSignature(*genSignature); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rt, err := startRuntime(m, *contained)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	files := flag.Args()
	if m != nil {
		sources, err := m.SourceFiles()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		files = append(sources, files...)
	}

	if !*serveMode {
		rt.AddStdoutHandler(runtime.DefaultStdoutHandler, os.Stdout)
		rt.AddMessageHandler(rt.DefaultMessageHandler, os.Stderr)
	}

	for _, path := range files {
		if result := rt.Get(path); rt.ErrorQ(result) {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, rt.ErrorType(result))
			os.Exit(1)
		}
	}

	if *expr != "" {
		if !printResult(os.Stdout, rt, rt.EvalString(*expr), "") {
			os.Exit(1)
		}
		return
	}

	if *serveMode {
		port := *servePort
		var opts []server.Option
		if m != nil {
			if port == 0 {
				port = m.Server.Port
			}
			opts = append(opts, server.WithHandleTTL(m.Server.HandleTTL.Duration))
		}
		if port == 0 {
			port = 8765
		}
		if err := serve(rt, port, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive || len(files) == 0 {
		runREPL(rt, os.Stdin, os.Stdout)
	}
}

// startRuntime creates and starts a runtime configured by m, which may be
// nil.
func startRuntime(m *manifest.Manifest, contained bool) (*runtime.Runtime, error) {
	rt := runtime.New()
	conf := runtime.DefaultConfiguration()
	layout := ""
	if m != nil {
		if err := m.Apply(rt); err != nil {
			return nil, err
		}
		conf = m.Configuration()
		layout = m.LayoutDirectory()
	}
	if contained {
		conf.Containment = runtime.Contained
	}
	if k := rt.Start(runtime.Version1, runtime.SignedCodeModeLicense, layout, conf); k != runtime.Success {
		return nil, fmt.Errorf("starting runtime: %w", k.Err())
	}
	return rt, nil
}

func writeSignature(path string) error {
	sig, err := runtime.GenerateSignature()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, sig[:], 0o600); err != nil {
		return fmt.Errorf("writing signature: %w", err)
	}
	fmt.Printf("Wrote %s signature to %s\n", humanize.Bytes(uint64(len(sig))), path)
	return nil
}

func serve(rt *runtime.Runtime, port int, opts []server.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := server.New(rt, opts...)
	defer srv.Stop()

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("wlr server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://localhost%s%s\n", addr, server.EvalStringProcedure)
	return srv.Serve(ctx, addr)
}

// printResult writes the input form of e with an optional prefix. It
// reports false for error expressions.
func printResult(w io.Writer, rt *runtime.Runtime, e runtime.Expr, prefix string) bool {
	if rt.ErrorQ(e) {
		fmt.Fprintf(w, "%s%v\n", prefix, rt.ErrorType(e))
		return false
	}
	var text string
	if k := rt.ToString(e, &text); k != runtime.Success {
		fmt.Fprintf(w, "%s%v\n", prefix, k)
		return false
	}
	if text != "Null" {
		fmt.Fprintf(w, "%s%s\n", prefix, text)
	}
	return true
}

func runREPL(rt *runtime.Runtime, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "wlr REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Fprintln(out)

	// Ctrl-C aborts the running evaluation instead of exiting.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			rt.Abort()
		}
	}()

	scanner := bufio.NewScanner(in)
	var lineBuffer strings.Builder
	count := 0

	for {
		if lineBuffer.Len() == 0 {
			fmt.Fprintf(out, "In[%d]:= ", count+1)
		} else {
			fmt.Fprint(out, "        ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if lineBuffer.Len() == 0 && (line == "exit" || line == "quit") {
			break
		}
		if lineBuffer.Len() == 0 && strings.HasPrefix(line, ":") {
			handleREPLCommand(rt, out, line)
			continue
		}

		if lineBuffer.Len() > 0 {
			lineBuffer.WriteString("\n")
		}
		lineBuffer.WriteString(line)

		// Keep reading while brackets or a string are still open.
		input := lineBuffer.String()
		if !complete(input) && line != "" {
			continue
		}
		lineBuffer.Reset()
		if strings.TrimSpace(input) == "" {
			continue
		}

		count++
		rt.ClearAbort()
		rt.CreateExpressionPool()
		printResult(out, rt, rt.EvalString(input), fmt.Sprintf("Out[%d]= ", count))
		rt.ReleaseExpressionPool()
	}

	fmt.Fprintln(out)
}

func handleREPLCommand(rt *runtime.Runtime, out io.Writer, cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(out, "  :stats            Show runtime statistics")
		fmt.Fprintln(out, "  :keys             List keys in the expression store")
		fmt.Fprintln(out, "  exit, quit        Exit REPL")
	case ":stats":
		stats := rt.Stats()
		fmt.Fprintf(out, "%s, %s in use\n", stats, humanize.Bytes(uint64(stats.MemoryInUse)))
	case ":keys":
		keys, k := rt.StoredKeys()
		if k != runtime.Success {
			fmt.Fprintf(out, "No store: %v\n", k)
			return
		}
		for _, key := range keys {
			fmt.Fprintln(out, key)
		}
	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// complete reports whether src has no open brackets or strings.
func complete(src string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth <= 0 && !inString
}
