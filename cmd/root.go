/*
Copyright 2022

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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/penny-vault/import-nse/eod"
	"github.com/penny-vault/import-nse/nse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	showConfig bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "import-nse",
	Short: "Download end-of-day quotes from the NSE",
	Long: `Download end-of-day price and delivery reports from the National
Stock Exchange of India and maintain per-symbol history files`,
	Version: "1.0.0",
	Run: func(cmd *cobra.Command, args []string) {
		if showConfig {
			settings, err := json.MarshalIndent(viper.AllSettings(), "", "  ")
			cobra.CheckErr(err)
			fmt.Println(string(settings))
			return
		}

		syncer, err := eod.NewSyncer(syncConfig(), newFetcher(), retryPolicy())
		if err != nil {
			log.Fatal().Str("OriginalError", err.Error()).Msg("could not initialize sync")
		}

		if err := syncer.Run(context.Background()); err != nil {
			log.Fatal().Str("OriginalError", err.Error()).Msg("sync failed")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func syncConfig() eod.Config {
	return eod.Config{
		DataDir:            viper.GetString("data_dir"),
		CutoffHour:         viper.GetInt("cutoff_hour"),
		RetentionDays:      viper.GetInt("retention_days"),
		PendingMaxDays:     viper.GetInt("pending_max_days"),
		SpecialSessionDesc: viper.GetString("special_session_desc"),
		Indices:            viper.GetStringSlice("indices"),
		HookName:           viper.GetString("hook"),
		ParquetFile:        viper.GetString("parquet_file"),
		DatabaseURL:        viper.GetString("database.url"),
		Progress:           viper.GetBool("progress"),
	}
}

func newFetcher() *nse.Client {
	reportDir := viper.GetString("report_dir")
	if reportDir == "" {
		reportDir = filepath.Join(viper.GetString("data_dir"), "reports")
	}
	return nse.NewClient(reportDir, viper.GetInt("nse_rate_limit"))
}

func retryPolicy() nse.RetryPolicy {
	policy := nse.DefaultRetryPolicy()
	if n := viper.GetInt("retry.max_attempts"); n > 0 {
		policy.MaxAttempts = n
	}
	if d := viper.GetDuration("retry.base_delay"); d > 0 {
		policy.BaseDelay = d
	}
	if d := viper.GetDuration("retry.max_delay"); d > 0 {
		policy.MaxDelay = d
	}
	return policy
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnInitialize(initLog)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file (default is import-nse.toml)")
	rootCmd.Flags().BoolVar(&showConfig, "config", false, "print the resolved configuration and exit")
	rootCmd.PersistentFlags().Bool("log.json", false, "print logs as json to stderr")
	viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log.json"))

	rootCmd.PersistentFlags().String("data-dir", "data", "directory holding symbol records and sync state")
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.PersistentFlags().String("report-dir", "", "archive raw exchange reports to this directory")
	viper.BindPFlag("report_dir", rootCmd.PersistentFlags().Lookup("report-dir"))

	rootCmd.PersistentFlags().Int("nse-rate-limit", 2, "nse rate limit (requests per second)")
	viper.BindPFlag("nse_rate_limit", rootCmd.PersistentFlags().Lookup("nse-rate-limit"))

	rootCmd.PersistentFlags().Bool("progress", true, "show progress bars")
	viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))

	// Local flags
	rootCmd.Flags().StringP("database-url", "d", "", "DSN for database connection")
	viper.BindPFlag("database.url", rootCmd.Flags().Lookup("database-url"))

	rootCmd.Flags().String("parquet-file", "", "save results to parquet")
	viper.BindPFlag("parquet_file", rootCmd.Flags().Lookup("parquet-file"))

	rootCmd.Flags().String("hook", "", "post-sync hook to run after each day")
	viper.BindPFlag("hook", rootCmd.Flags().Lookup("hook"))

	viper.SetDefault("cutoff_hour", 19)
	viper.SetDefault("retention_days", 365)
	viper.SetDefault("pending_max_days", 5)
	viper.SetDefault("special_session_desc", "Laxmi Pujan")
	viper.SetDefault("indices", []string{"Nifty 50"})
	viper.SetDefault("retry.max_attempts", 4)
	viper.SetDefault("retry.base_delay", 2*time.Second)
	viper.SetDefault("retry.max_delay", 30*time.Second)
}

func initLog() {
	if !viper.GetBool("log.json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".import-nse" (without extension).
		viper.AddConfigPath("/etc/import-nse/") // path to look for the config file in
		viper.AddConfigPath(fmt.Sprintf("%s/.import-nse", home))
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		viper.SetConfigName("import-nse")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("ConfigFile", viper.ConfigFileUsed()).Msg("Loaded config file")
	} else {
		log.Debug().Err(err).Msg("no config file loaded")
	}
}
