package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/parley/pkg/engine"
	"github.com/germanamz/parley/pkg/logging"
)

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "init" {
		initCmd := flag.NewFlagSet("init", flag.ExitOnError)
		initCmd.Usage = func() {
			fmt.Fprintf(os.Stderr, "Usage: parley init [flags]\n\nCreate a parley.yaml config file interactively.\n\nFlags:\n")
			initCmd.PrintDefaults()
		}
		output := initCmd.String("output", "parley.yaml", "path to write the config file")
		force := initCmd.Bool("force", false, "overwrite an existing config file")
		_ = initCmd.Parse(os.Args[2:])

		if err := runInit(*output, *force); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: parley [flags]\n       parley <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init    Create a parley.yaml config file interactively\n")
	}

	configPath := flag.String("config", "", "path to configuration file (default: parley.yaml or ~/.parley/parley.yaml)")
	chatName := flag.String("chat", "", "chat to start (overrides default_chat in config)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *chatName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(outputPath string, force bool) error {
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", outputPath)
		}
	}

	configYAML, err := runWizard()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, configYAML, 0o600); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", outputPath)
	fmt.Println("Set the referenced API key environment variables and run 'parley' to start chatting.")

	return nil
}

func run(configPath, chatName string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Config resolution: explicit flag → parley.yaml → ~/.parley/parley.yaml.
	cfg, err := engine.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return err
	}

	// Logging goes to a file so the TUI owns the terminal. Set up before the
	// engine so compiled chats pick up the configured default logger.
	if _, err := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
		Format: cfg.Logging.Format,
	}); err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if chatName == "" {
		chatName = eng.DefaultChat()
	}

	conv, err := eng.NewConversation(chatName)
	if err != nil {
		return err
	}

	model := newAppModel(ctx, conv, chatName)

	_, err = tea.NewProgram(model).Run()
	return err
}
