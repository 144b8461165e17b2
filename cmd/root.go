/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/catmotion/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catmotion",
	Short: "Adaptive background location tracking",
	Long: `catmotion classifies a device's movement from the location samples it delivers
and tells it how often to deliver them: often while moving fast, rarely while sitting still.

Samples are posted to the web daemon (catmotion webd), or replayed from a file (catmotion replay).
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.catmotion.yaml)")
	pFlags.String("datadir", params.DatadirRoot, "Root directory for tracker state")
	pFlags.Int("verbosity", int(slog.LevelInfo), "Log level, as slog.Level (-4 debug, 0 info, 4 warn, 8 error)")

	_ = viper.BindPFlag("datadir", pFlags.Lookup("datadir"))
	_ = viper.BindPFlag("verbosity", pFlags.Lookup("verbosity"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".catmotion" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".catmotion")
	}

	viper.SetEnvPrefix("CATMOTION")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	datadir, err := homedir.Expand(viper.GetString("datadir"))
	cobra.CheckErr(err)
	params.DatadirRoot = filepath.Clean(datadir)
}

// setDefaultSlog installs a text handler at the configured verbosity.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.Level(viper.GetInt("verbosity"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("Logging", "command", cmd.Name(), "args", args, "level", level)
}
