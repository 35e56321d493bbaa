// Package config provides configuration management for sitepipe using Viper
// for flexible loading from files, environment variables and command-line
// flags.
//
// The resulting Config is a plain value: it is loaded once at startup,
// validated, and then passed to the builder, watcher and server
// constructors. Nothing reloads it at runtime.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override (SITEPIPE_SERVER_PORT).
const EnvPrefix = "SITEPIPE"

// DefaultFileName is the configuration file searched in the working directory.
const DefaultFileName = ".sitepipe.yml"

type Config struct {
	Paths  PathsConfig  `mapstructure:"paths" yaml:"paths"`
	Bundle BundleConfig `mapstructure:"bundle" yaml:"bundle"`
	Style  StyleConfig  `mapstructure:"style" yaml:"style"`
	Inject InjectConfig `mapstructure:"inject" yaml:"inject"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// PathsConfig holds the two roots every category path is derived from.
type PathsConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Public string `mapstructure:"public" yaml:"public"`
}

type BundleConfig struct {
	ScriptName string `mapstructure:"script_name" yaml:"script_name"`
	SourceMap  bool   `mapstructure:"source_map" yaml:"source_map"`
}

// Supported style compilers.
const (
	CompilerDartSass = "dart-sass"
	CompilerCSS      = "css"
)

type StyleConfig struct {
	Compiler       string   `mapstructure:"compiler" yaml:"compiler"`
	DartSassBinary string   `mapstructure:"dart_sass_binary" yaml:"dart_sass_binary"`
	IncludePaths   []string `mapstructure:"include_paths" yaml:"include_paths,omitempty"`
	SourceMap      bool     `mapstructure:"source_map" yaml:"source_map"`
}

// InjectConfig lists the references written into generated markup. Order
// is significant: earlier entries render first.
type InjectConfig struct {
	HeaderStyles  []string `mapstructure:"header_styles" yaml:"header_styles"`
	FooterScripts []string `mapstructure:"footer_scripts" yaml:"footer_scripts"`
	HeaderTag     string   `mapstructure:"header_tag" yaml:"header_tag"`
	FooterTag     string   `mapstructure:"footer_tag" yaml:"footer_tag"`
	EndTag        string   `mapstructure:"end_tag" yaml:"end_tag"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	DefaultFile string `mapstructure:"default_file" yaml:"default_file"`
	LiveReload  bool   `mapstructure:"livereload" yaml:"livereload"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvKeyReplacer maps nested keys to environment names (server.port -> SERVER_PORT).
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// Default returns the configuration used when nothing overrides it. The
// reference lists match the layout produced by the vendor, sass and js
// tasks.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			Source: "src",
			Public: "public",
		},
		Bundle: BundleConfig{
			ScriptName: "scripts.min.js",
			SourceMap:  true,
		},
		Style: StyleConfig{
			Compiler:  CompilerDartSass,
			SourceMap: true,
		},
		Inject: InjectConfig{
			HeaderStyles: []string{
				"public/vendor/css/bootstrap.min.css",
				"public/css/style.min.css",
			},
			FooterScripts: []string{
				"public/vendor/js/jquery-3.4.1.slim.min.js",
				"public/vendor/js/bootstrap.bundle.min.js",
				"public/js/scripts.min.js",
			},
			HeaderTag: "<!-- inject:header -->",
			FooterTag: "<!-- inject:footer -->",
			EndTag:    "<!-- endinject -->",
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        8000,
			DefaultFile: "html/index.html",
			LiveReload:  true,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers Default() on v so that environment variables bound
// through AutomaticEnv are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("paths.source", d.Paths.Source)
	v.SetDefault("paths.public", d.Paths.Public)
	v.SetDefault("bundle.script_name", d.Bundle.ScriptName)
	v.SetDefault("bundle.source_map", d.Bundle.SourceMap)
	v.SetDefault("style.compiler", d.Style.Compiler)
	v.SetDefault("style.dart_sass_binary", d.Style.DartSassBinary)
	v.SetDefault("style.source_map", d.Style.SourceMap)
	v.SetDefault("inject.header_styles", d.Inject.HeaderStyles)
	v.SetDefault("inject.footer_scripts", d.Inject.FooterScripts)
	v.SetDefault("inject.header_tag", d.Inject.HeaderTag)
	v.SetDefault("inject.footer_tag", d.Inject.FooterTag)
	v.SetDefault("inject.end_tag", d.Inject.EndTag)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.default_file", d.Server.DefaultFile)
	v.SetDefault("server.livereload", d.Server.LiveReload)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration from the global viper instance.
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// Env overrides of list values arrive as a single space separated string.
	if v.IsSet("inject.header_styles") {
		cfg.Inject.HeaderStyles = v.GetStringSlice("inject.header_styles")
	}
	if v.IsSet("inject.footer_scripts") {
		cfg.Inject.FooterScripts = v.GetStringSlice("inject.footer_scripts")
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
