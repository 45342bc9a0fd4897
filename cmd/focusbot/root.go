package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/focusbot/internal/config"
	"github.com/suykerbuyk/focusbot/internal/help"
)

// errSilent exits non-zero after the command already reported why.
var errSilent = errors.New("silent failure")

type configLoader func() (config.Config, error)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "focusbot",
		Short:         help.TopLevel.Synopsis,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.config/focusbot/config.toml)")

	load := func() (config.Config, error) {
		return config.LoadFrom(cfgPath)
	}

	prompts := &cobra.Command{Use: "prompts", Short: "Manage prompt overrides"}
	prompts.AddCommand(newPromptsSeedCmd(load))
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage the config file"}
	cfgCmd.AddCommand(newConfigInitCmd())

	root.AddCommand(
		newRunCmd(load),
		newCaptureCmd(load),
		newEnrichCmd(load),
		newCheckCmd(load, &cfgPath),
		prompts,
		cfgCmd,
		newVersionCmd(),
	)

	root.SetHelpFunc(func(c *cobra.Command, _ []string) {
		out := c.OutOrStdout()
		if c == root {
			fmt.Fprint(out, help.FormatUsage(help.TopLevel, help.Subcommands))
			return
		}
		if h, ok := help.Lookup(commandName(c)); ok {
			fmt.Fprint(out, help.FormatTerminal(h))
			return
		}
		fmt.Fprint(out, c.UsageString())
	})
	return root
}

// commandName returns c's path below the root, e.g. "prompts seed".
func commandName(c *cobra.Command) string {
	return strings.TrimPrefix(c.CommandPath(), c.Root().Name()+" ")
}

// briefed fills Short from the shared command reference.
func briefed(c *cobra.Command, h help.Command) *cobra.Command {
	c.Short = h.Brief
	c.Long = h.Description
	return c
}
