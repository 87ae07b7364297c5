package main

import (
	clay "github.com/go-go-golems/clay/pkg"
	geppettosections "github.com/go-go-golems/geppetto/pkg/sections"
	"github.com/go-go-golems/glazed/pkg/cli"
	glazed_cmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/kbchat/cmd/kbchat/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "Terminal chat client and endpoint for a knowledge-base Q&A service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromCobra(cmd)
	},
}

func main() {
	if err := clay.InitGlazed("kbchat", rootCmd); err != nil {
		cobra.CheckErr(err)
	}

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	chatCmd, err := cmds.NewChatCommand()
	cobra.CheckErr(err)
	serveCmd, err := cmds.NewServeCommand()
	cobra.CheckErr(err)
	tailCmd, err := cmds.NewTailCommand()
	cobra.CheckErr(err)

	for _, c := range []glazed_cmds.Command{chatCmd, tailCmd} {
		command, err := cli.BuildCobraCommand(c)
		cobra.CheckErr(err)
		rootCmd.AddCommand(command)
	}

	// serve carries the geppetto sections and needs their config middlewares
	command, err := cli.BuildCobraCommand(serveCmd, cli.WithCobraMiddlewaresFunc(geppettosections.GetCobraCommandGeppettoMiddlewares))
	cobra.CheckErr(err)
	rootCmd.AddCommand(command)

	cobra.CheckErr(rootCmd.Execute())
}
