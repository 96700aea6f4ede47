package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/qnkhuat/chessrelay/pkg"
)

func newCmd() *cobra.Command {
	cfg := &pkg.Config{}

	v := viper.New()
	v.SetEnvPrefix("CHESSRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "chessrelay",
		Short:         "Authoritative chess server for browsers, terminals and ssh.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       pkg.ReleaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := pkg.InitLog(cfg.LogFile, cfg.Verbose); err != nil {
				return err
			}
			defer pkg.SyncLog()

			pkg.Log.Infow("starting", "version", pkg.ReleaseVersion)
			return pkg.NewServer(cfg).ListenAndServe(cmd.Context())
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: CHESSRELAY_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: CHESSRELAY_PORT)")
	fs.StringVar(&cfg.ListenTCP, "listen-tcp", "", "also accept line-protocol clients on this address, e.g. :1998 (env: CHESSRELAY_LISTEN_TCP)")
	fs.StringVar(&cfg.ListenSSH, "listen-ssh", "", "serve chessterm over ssh on this address, e.g. :2022 (env: CHESSRELAY_LISTEN_SSH)")
	fs.StringVar(&cfg.SSHHostKey, "ssh-host-key", "", "path to ssh host key, generated when empty (env: CHESSRELAY_SSH_HOST_KEY)")
	fs.StringVar(&cfg.Chessterm, "chessterm", "chessterm", "chessterm binary started for ssh sessions (env: CHESSRELAY_CHESSTERM)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", 60*time.Minute, "time before matches without activity are dropped, 0 to keep forever (env: CHESSRELAY_IDLE_TIMEOUT)")
	fs.IntVar(&cfg.QueueSize, "queue-size", pkg.ConnQueueSize, "outgoing messages buffered per connection before it is dropped (env: CHESSRELAY_QUEUE_SIZE)")
	fs.StringVar(&cfg.LogFile, "log", "", "log to this file instead of stderr (env: CHESSRELAY_LOG)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to tls certificate (env: CHESSRELAY_TLS_CERT)")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to tls keyfile (env: CHESSRELAY_TLS_KEY)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: CHESSRELAY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("chessrelay v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}
