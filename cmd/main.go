package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"posbot/cmd/keys"
	"posbot/cmd/runner"
	"posbot/cmd/snapshot"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "posbot"
	app.Usage = "Position PNL watcher with Telegram alerts"
	app.Version = Version
	app.Before = func(_ *cli.Context) error {
		SetupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		runCMD,
		snapshotCMD,
		statusCMD,
		encryptSecretCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var jsonFlag = cli.BoolFlag{
	Name:  "json",
	Usage: "print JSON instead of a table",
}

var (
	runCMD = cli.Command{
		Name:        "run",
		Usage:       "run the watcher, Telegram bot and HTTP API",
		Action:      runAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run until SIGINT or SIGTERM`,
	}
	snapshotCMD = cli.Command{
		Name:        "snapshot",
		Usage:       "fetch open positions once",
		Action:      snapshotAction,
		Flags:       []cli.Flag{jsonFlag},
		Description: `Fetch the configured exchange once and print the open positions`,
	}
	statusCMD = cli.Command{
		Name:        "status",
		Usage:       "print the persisted state",
		Action:      statusAction,
		Flags:       []cli.Flag{jsonFlag},
		Description: `Print the state file at STATE_PATH`,
	}
	encryptSecretCMD = cli.Command{
		Name:      "encrypt-secret",
		Usage:     "encrypt exchange credentials with EXCHANGE_CREDENTIALS_KEY",
		Action:    encryptSecretAction,
		ArgsUsage: "<value> [value...]",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "generate-key", Usage: "generate a key when EXCHANGE_CREDENTIALS_KEY is unset", EnvVar: "KEYS_GENERATE"},
		},
	}
	hashTokenCMD = cli.Command{
		Name:      "hash-token",
		Usage:     "print the bcrypt hash for API_TOKEN_HASH",
		Action:    hashTokenAction,
		ArgsUsage: "<token>",
	}
)

func runAction(_ *cli.Context) error {
	logrus.WithField("cmd", "run").Info("Starting posbot")

	r := &runner.Runner{}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func snapshotAction(c *cli.Context) error {
	s := &snapshot.Snapshot{Out: os.Stdout}
	return s.Start(c.Bool("json"))
}

func statusAction(c *cli.Context) error {
	s := &snapshot.Snapshot{Out: os.Stdout}
	return s.Status(c.Bool("json"))
}

func encryptSecretAction(c *cli.Context) error {
	generate := c.Bool("generate-key") || keys.GetConfig().GenerateKey
	return keys.EncryptSecret(os.Stdout, c.Args(), generate)
}

func hashTokenAction(c *cli.Context) error {
	return keys.HashToken(os.Stdout, c.Args().First())
}

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
