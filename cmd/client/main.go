package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tuannm99/novats/tsclient"
)

const prompt = "novats> "

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit" || line == "help"
}

func exec(cli *tsclient.Client, line string) error {
	req, err := parseCommand(line)
	if err != nil {
		return err
	}
	resp, err := cli.Do(context.Background(), req)
	if err != nil {
		return err
	}
	printResponse(resp, req)
	return nil
}

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:8866", "server address")
		timeout  = flag.Duration("timeout", 3*time.Second, "dial timeout")
		rwTime   = flag.Duration("rw-timeout", 30*time.Second, "per-request timeout")
		histPath = flag.String("history", defaultHistoryPath(), "history file path")
		histMax  = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShot  = flag.String("c", "", "execute one command and exit")
	)
	flag.Parse()

	cli, err := tsclient.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cli.Close() }()
	cli.SetRWTimeout(*rwTime)

	if strings.TrimSpace(*oneShot) != "" {
		if err := exec(cli, *oneShot); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	h := NewHistory(*histPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			// EOF
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help", "help":
				fmt.Println(helpText)
			case "\\history":
				h.Print(50)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(line)

		if err := exec(cli, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}
