package main

import (
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type (
	Cmd struct {
		rootCmd    *cobra.Command
		v          *viper.Viper
		log        *slog.Logger
		rootFlags  rootFlags
		queryFlags queryFlags
	}

	rootFlags struct {
		cfgFile   string
		debugMode bool
		logLevel  string
		logFormat string
	}
)

func New() *Cmd {
	return &Cmd{
		v:   viper.New(),
		log: slog.New(slog.DiscardHandler),
	}
}

func (c *Cmd) Execute() {
	if err := c.newRootCmd().Execute(); err != nil {
		log.Fatalln(err)
	}
}

func (c *Cmd) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xconn",
		Short: "Run queries through a pooled connection",
		Long: `Run queries against a database/sql driver through xconn connections,
cursors and the keyed connection pool.`,
		PersistentPreRunE: c.initConfig,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/.xconn.yaml)")
	rootCmd.PersistentFlags().BoolVar(&c.rootFlags.debugMode, "debug", false, "turn on debug output")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logFormat, "log-format", "text", "log format (text, json)")
	_ = c.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.getQueryCmd())

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func (c *Cmd) initConfig(cmd *cobra.Command, args []string) error {
	if c.rootFlags.cfgFile != "" {
		c.v.SetConfigFile(c.rootFlags.cfgFile)
	} else {
		c.v.SetConfigName(".xconn")
		c.v.AddConfigPath(".")
		if cfgdir, err := os.UserConfigDir(); err == nil {
			c.v.AddConfigPath(cfgdir)
		}
	}

	c.v.SetEnvPrefix("XCONN")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	configErr := c.v.ReadInConfig()
	if configErr != nil && c.rootFlags.cfgFile != "" {
		return configErr
	}

	level := c.v.GetString("log.level")
	if c.rootFlags.debugMode {
		level = "debug"
	}
	c.log = newLogger(cmd.ErrOrStderr(), level, c.v.GetString("log.format"))

	var notFound viper.ConfigFileNotFoundError
	if configErr == nil {
		c.log.Debug("Using config file", slog.String("path", c.v.ConfigFileUsed()))
	} else if !errors.As(configErr, &notFound) {
		c.log.Warn("Failed reading config file", slog.Any("error", configErr))
	}
	return nil
}

// newLogger builds a slog logger writing to w. Unknown levels fall back to
// info and unknown formats to text.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
