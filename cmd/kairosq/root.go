package main

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const clientSecretEnv = "KAIROSQ_CLIENT_SECRET"

func newRootCommand() *cobra.Command {
	var logLevel string
	var logJSON bool

	cmd := &cobra.Command{
		Use:           "kairosq",
		Short:         "Query KairosDB and forward the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			if logJSON {
				logrus.SetFormatter(&logrus.JSONFormatter{})
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	cmd.AddCommand(newQueryCommand(), newScrapeCommand())

	return cmd
}

// printJSON writes v as one line of JSON.
func printJSON(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
