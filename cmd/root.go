// Package cmd provides the sitepipe command-line interface.
//
// Configuration is read once at startup, with this precedence:
//  1. Command-line flags (--port, --log-level, ...)
//  2. SITEPIPE_<SECTION>_<KEY> environment variables, after loading .env
//  3. The file named by --config or SITEPIPE_CONFIG_FILE
//  4. .sitepipe.yml in the working directory
//  5. Built-in defaults
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
)

// configErr is set when a configuration file cannot be read. Commands that
// load the configuration fail with it.
var configErr error

var (
	cfgFile   string
	noColor   bool
	logLevel  = newEnumValue("info", "debug", "info", "warn", "error")
	logFormat = newEnumValue("text", "text", "json")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Build and serve a static site from src/ into public/",
	Long: `sitepipe compiles stylesheets, bundles scripts, minifies markup, copies
vendor assets and injects asset references, then serves the result with
live reload.

Quick Start:
  sitepipe init        Write a default .sitepipe.yml
  sitepipe             Clean, build and serve
  sitepipe watch       Clean, build and rebuild on change
  sitepipe serve -w    Serve and rebuild on change`,
	SilenceUsage: true,
	RunE:         withApp(runServeApp(false)),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use SITEPIPE_CONFIG_FILE env var)")
	pf.VarP(logLevel, "log-level", "l", "log level (debug, info, warn, error)")
	pf.Var(logFormat, "log-format", "log format (text, json)")
	pf.BoolVar(&noColor, "no-color", false, "disable coloured summaries")
}

// bindFlags connects flags to their configuration keys. It runs before
// every command because the viper instance may have been reset.
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	_ = godotenv.Load()
	bindFlags()
	configErr = nil

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITEPIPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepipe")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	// Only a searched .sitepipe.yml may be absent. A file named explicitly
	// must exist, and any file found must parse. The error is kept rather
	// than returned so that version and init still work.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			configErr = errors.NewConfigError("config", "reading %s: %v", configName(), err)
		}
	}
}

func configName() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return config.DefaultFileName
}
