package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/qnkhuat/chessrelay/pkg"
	"github.com/qnkhuat/chessrelay/pkg/gui"
)

type config struct {
	server  string
	logFile string
	plain   bool
	theme   string
	verbose bool
}

func newCmd() *cobra.Command {
	cfg := &config{}

	v := viper.New()
	v.SetEnvPrefix("CHESSTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "chessterm",
		Short:         "Play chess against another terminal, browser or ssh user.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       pkg.ReleaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			theme, err := gui.ThemeByName(cfg.theme)
			if err != nil {
				return err
			}
			// the terminal belongs to the board, so logs only go to a file
			if cfg.logFile != "" {
				if err := pkg.InitLog(cfg.logFile, cfg.verbose); err != nil {
					return err
				}
				defer pkg.SyncLog()
			}

			cl, err := pkg.Connect(cfg.server)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", cfg.server, err)
			}
			defer cl.Disconnect()

			if cfg.plain || !term.IsTerminal(int(os.Stdout.Fd())) {
				return gui.RunPlain(cmd.Context(), cl, os.Stdin, os.Stdout)
			}
			return gui.New(cl, theme).Run(cmd.Context())
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "ws://127.0.0.1:8080/ws/"+pkg.DefaultMatch, "server to connect to, ws://, wss:// or tcp:// (env: CHESSTERM_SERVER)")
	fs.StringVar(&cfg.logFile, "log", "./chessterm.log", "path to log file, empty to disable (env: CHESSTERM_LOG)")
	fs.BoolVar(&cfg.plain, "plain", false, "print the board as text and read moves from stdin (env: CHESSTERM_PLAIN)")
	fs.StringVar(&cfg.theme, "theme", gui.ThemeBasic.Name, "board colors, basic or classic (env: CHESSTERM_THEME)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every message (env: CHESSTERM_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("chessterm v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}
