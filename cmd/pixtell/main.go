package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ronwebb/pixtell/pkg/engine"
)

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "init" {
		initCmd := flag.NewFlagSet("init", flag.ExitOnError)
		initCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: pixtell init [flags]\n\nCreate a pixtell config file interactively.\n\nFlags:\n")
			initCmd.PrintDefaults()
		}
		out := initCmd.String("config", "pixtell.yaml", "path to write the configuration file")
		_ = initCmd.Parse(os.Args[2:])

		if err := runInit(*out); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pixtell [flags]\n       pixtell <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init    Create a pixtell config file interactively\n")
	}

	configPath := flag.String("config", "", "path to configuration file (default: pixtell.yaml)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	imageRef := flag.String("image", "", "caption this image and exit instead of starting the chat")
	question := flag.String("question", "", "with -image, ask this question instead of captioning")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *imageRef, *question); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	configYAML, err := runWizard()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, configYAML, 0o600); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)

	return nil
}

func run(configPath, imageRef, question string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := engine.LoadConfigOrDefault(resolveConfigPath(configPath))
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	sess := eng.NewSession()
	defer eng.RemoveSession(sess.ID())

	if imageRef != "" {
		return runOneShot(ctx, sess, imageRef, question)
	}

	model := newAppModel(ctx, sess, eng)

	_, err = tea.NewProgram(model).Run()
	return err
}

// runOneShot captions a single image (or answers a single question about it)
// and prints the result to stdout.
func runOneShot(ctx context.Context, sess *engine.Session, imageRef, question string) error {
	if err := sess.SetImage(ctx, stripQuotes(imageRef)); err != nil {
		return err
	}

	var (
		out string
		err error
	)

	if question != "" {
		out, err = sess.Ask(ctx, question)
	} else {
		out, err = sess.Describe(ctx)
	}

	if err != nil {
		return err
	}

	fmt.Println(out)

	return nil
}
