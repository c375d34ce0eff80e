package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mriview/pkg/config"
)

const defaultSettingsPath = "~/.mriview.yaml"

// app holds the state shared by the subcommands.
type app struct {
	settingsPath string
	verbose      bool
	settings     *config.Settings
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mriview",
		Short:         "Interactive viewer for volumetric MRI slice stacks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.settingsPath, "settings", defaultSettingsPath, "settings file (yaml or toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newViewCmd(a), newSnapshotCmd(a), newExportCmd(a), newConfigCmd(a))
	return root
}

// setup configures logging and loads the settings before any subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(cmd.ErrOrStderr())

	s, err := config.LoadSettings(a.settingsPath)
	if err != nil {
		return err
	}
	a.settings = s

	logrus.SetLevel(logrus.InfoLevel)
	if a.verbose || s.Output.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.WithField("settings", a.settingsPath).Debug("settings loaded")
	return nil
}

func banner(cmd *cobra.Command, title string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, "================================")
}
