package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/backend-bridge/backends/widgets"
	"github.com/wippyai/backend-bridge/bridge"
	"github.com/wippyai/backend-bridge/manifest"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "bridgectl",
	Short:         "Load, inspect and call versioned backends",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./bridgectl.yaml or ~/.config/bridgectl/bridgectl.yaml)")
	flags.String("manifest", "", "backend declaration manifest (default: built-in widgets declarations)")
	flags.String("locations", manifest.DefaultLocationsFile, "backend locations file")
	flags.String("user-locations", "", "optional locations file overriding --locations")
	flags.StringToString("default", nil, "default version per backend, e.g. widgets=1")
	flags.String("cache-dir", "", "directory for the compilation cache")
	flags.BoolP("verbose", "v", false, "debug logging")

	for key, flag := range map[string]string{
		"manifest":         "manifest",
		"locations":        "locations",
		"user_locations":   "user-locations",
		"default_versions": "default",
		"cache_dir":        "cache-dir",
		"verbose":          "verbose",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(listCmd, inspectCmd, callCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bridgectl"))
		}
		viper.SetConfigName("bridgectl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// backends builds the backend list from the configured manifest, or from
// the built-in widgets declarations when none is configured.
func backends() ([]bridge.Backend, error) {
	locPath := viper.GetString("locations")
	if _, err := os.Stat(locPath); err != nil && locPath == manifest.DefaultLocationsFile {
		locPath = ""
	}
	loc, err := manifest.LoadLocations(locPath, viper.GetString("user_locations"))
	if err != nil {
		return nil, err
	}
	path := viper.GetString("manifest")
	if path == "" {
		return widgets.Backends(loc), nil
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return bridge.BackendsFromManifest(m, loc), nil
}

func openBridge(ctx context.Context) (*bridge.Bridge, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	list, err := backends()
	if err != nil {
		return nil, err
	}
	return bridge.Open(ctx, bridge.Config{
		Logger:          log,
		Backends:        list,
		DefaultVersions: viper.GetStringMapString("default_versions"),
		CacheDir:        viper.GetString("cache_dir"),
	})
}
