package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/callcenter-console/internal/config"
	"github.com/callcenter-console/internal/console"
	"github.com/callcenter-console/internal/gateway"
	"github.com/callcenter-console/internal/i18n"
)

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath, "Path to the YAML config file")
		baseURL    = flag.String("url", "", "Backend base URL (overrides config)")
		lang       = flag.String("lang", "", "Interface language: ru or en (overrides config)")
		verbose    = flag.Bool("v", false, "Log every request")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Console.BaseURL = *baseURL
		cfg.Console.AuthURL, cfg.Console.UsersURL, cfg.Console.CallsURL = "", "", ""
	}
	if *lang != "" {
		cfg.Console.Language = *lang
	}

	auth, users, calls := cfg.Console.EndpointURLs()
	gw := gateway.New(
		gateway.Endpoints{Auth: auth, Users: users, Calls: calls},
		gateway.WithTimeout(cfg.Console.RequestTimeout.Std()),
	)

	printer := i18n.New(cfg.Console.Language)
	queue := console.NewQueue(100)
	c := console.New(gw,
		console.WithPollInterval(cfg.Console.PollInterval.Std()),
		console.WithNotifier(queue),
		console.WithPrinter(printer),
	)
	defer c.Close()

	fmt.Fprintf(os.Stdout, "Backend: %s\nType \"help\" for the list of commands.\n", cfg.Console.BaseURL)
	shell := newREPL(c, queue, bufio.NewScanner(os.Stdin), os.Stdout)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		shell.secret = func(prompt string) string {
			fmt.Fprint(os.Stdout, prompt)
			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stdout)
			if err != nil {
				return ""
			}
			return string(pw)
		}
	}
	shell.run(context.Background())
}
