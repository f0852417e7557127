/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/majewsky/femtoldap/internal/config"
	"github.com/majewsky/femtoldap/internal/database"
	"github.com/majewsky/femtoldap/internal/ldap"
	"github.com/majewsky/femtoldap/internal/metrics"
)

// filled by the build via -ldflags "-X main.version=..."
var version string

var (
	logJSON    bool
	logVerbose bool
	singleCore bool

	configFile      string
	configDir       string
	configWatch     bool
	ldapBindAddr    string
	ldapsBindAddr   string
	ldapsCertFile   string
	ldapsKeyFile    string
	metricsBindAddr string
)

var rootCmd = &cobra.Command{
	Use:           "femtoldap",
	Short:         "A tiny read-only LDAP server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := applyEnvFallbacks(cmd.Root().PersistentFlags())
		if err == nil {
			err = applyEnvFallbacks(cmd.Flags())
		}
		if err != nil {
			return err
		}
		setupLogging()
		if singleCore {
			runtime.GOMAXPROCS(1)
			log.Info().Msg("Restricting execution to a single core")
		}
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the LDAP server",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	if version != "" {
		config.VendorVersion = version
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&logJSON, "log-json", false, "emit log messages as JSON")
	pf.BoolVarP(&logVerbose, "log-verbose", "v", false, "emit debug log messages")
	pf.BoolVar(&singleCore, "single-core", false, "restrict execution to a single CPU core")

	sf := serverCmd.Flags()
	sf.StringVarP(&configFile, "config-file", "c", "config.toml", "path to the main configuration file")
	sf.StringVar(&configDir, "config-dir", "", "directory with additional *.toml configuration files")
	sf.BoolVar(&configWatch, "config-watch", false, "reload automatically when configuration files change")
	sf.StringVar(&ldapBindAddr, "ldap-bind-addr", "0.0.0.0:3389", "listen address for plain LDAP (empty to disable)")
	sf.StringVar(&ldapsBindAddr, "ldaps-bind-addr", "", "listen address for LDAPS (empty to disable)")
	sf.StringVar(&ldapsCertFile, "ldaps-certificate-file", "", "path to the TLS certificate for LDAPS")
	sf.StringVar(&ldapsKeyFile, "ldaps-key-file", "", "path to the TLS private key for LDAPS")
	sf.StringVar(&metricsBindAddr, "metrics-bind-addr", "127.0.0.1:9000", "listen address for the Prometheus metrics endpoint (empty to disable)")

	rootCmd.AddCommand(serverCmd)
}

// applyEnvFallbacks fills every flag that was not given on the command line
// from the environment variable matching its name (e.g. LDAP_BIND_ADDR for
// --ldap-bind-addr).
func applyEnvFallbacks(flags *pflag.FlagSet) error {
	var result error
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			return
		}
		envName := strings.ToUpper(strings.ReplaceAll(flag.Name, "-", "_"))
		value, exists := os.LookupEnv(envName)
		if !exists {
			return
		}
		if err := flags.Set(flag.Name, value); err != nil && result == nil {
			result = fmt.Errorf("cannot apply %s: %w", envName, err)
		}
	})
	return result
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if logVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if logJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	rebuild := func() (*database.Database, error) {
		cfg, err := config.Load(configFile, configDir)
		if err != nil {
			return nil, err
		}
		db := database.FromEntries(cfg.AssembleEntries())
		stats := db.Stats()
		log.Debug().
			Int("entries", stats.Entries).
			Int("bind_capable", stats.BindCapable).
			Int("eq_index_keys", stats.EqIndexKeys).
			Int("suffix_index_keys", stats.SuffixIndexKeys).
			Msg("Assembled database")
		return db, nil
	}

	db, err := rebuild()
	if err != nil {
		return err
	}
	server := ldap.NewServer(db, rebuild)

	runCfg := ldap.RunConfig{
		LDAPBindAddr:  ldapBindAddr,
		LDAPSBindAddr: ldapsBindAddr,
	}
	if ldapsBindAddr != "" {
		if ldapsCertFile == "" || ldapsKeyFile == "" {
			return errors.New("--ldaps-bind-addr requires --ldaps-certificate-file and --ldaps-key-file")
		}
		cert, err := tls.LoadX509KeyPair(ldapsCertFile, ldapsKeyFile)
		if err != nil {
			return fmt.Errorf("cannot load TLS certificate: %w", err)
		}
		runCfg.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}
	}
	if configWatch {
		runCfg.WatchPaths = []string{filepath.Dir(configFile)}
		if configDir != "" {
			runCfg.WatchPaths = append(runCfg.WatchPaths, configDir)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(ctx, runCfg)
	})
	if metricsBindAddr != "" {
		group.Go(func() error {
			return metrics.ListenAndServe(ctx, metricsBindAddr)
		})
	}

	err = group.Wait()
	log.Info().Msg("Terminating")
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Unrecoverable error")
	}
}
