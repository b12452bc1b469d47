package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/zfetch/internal/config"
	"github.com/matheus3301/zfetch/internal/daemon"
	"github.com/matheus3301/zfetch/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	anchorFlag := flag.String("anchor", "", "initial anchor: message id, newest, oldest or first_unread")
	logLevelFlag := flag.String("log-level", "", "log level (overrides session config)")
	writeConfig := flag.Bool("write-config", false, "write a default session config if none exists, then exit")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig {
		if err := writeDefaultConfig(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			Anchor:      *anchorFlag,
			LogLevel:    *logLevelFlag,
		}),
	)

	app.Run()
}

func writeDefaultConfig(sessionName string) error {
	path := session.SessionConfigPath(sessionName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.SaveSession(path, config.DefaultSession()); err != nil {
		return err
	}
	fmt.Printf("wrote %s; set realm.url, realm.email and realm.api_key (or $%s)\n", path, config.APIKeyEnv)
	return nil
}
