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
	"time"

	"github.com/penny-vault/import-nse/eod"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Download historical reports for a date range",
	Long: `Download historical price and delivery reports for every weekday in
the given range and store each day under data-dir/backfill/<date>. Backfill
does not modify the daily records or the sync cursor`,
	Run: func(cmd *cobra.Command, args []string) {
		from, err := time.Parse(eod.DateFormat, viper.GetString("backfill.from"))
		if err != nil {
			log.Fatal().Str("From", viper.GetString("backfill.from")).Msg("--from must be YYYY-MM-DD")
		}
		to, err := time.Parse(eod.DateFormat, viper.GetString("backfill.to"))
		if err != nil {
			log.Fatal().Str("To", viper.GetString("backfill.to")).Msg("--to must be YYYY-MM-DD")
		}

		err = eod.Backfill(context.Background(), newFetcher(), retryPolicy(),
			viper.GetString("data_dir"), from, to, viper.GetInt("backfill.workers"))
		if err != nil {
			log.Fatal().Str("OriginalError", err.Error()).Msg("backfill failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	viper.BindPFlag("backfill.from", backfillCmd.Flags().Lookup("from"))

	backfillCmd.Flags().String("to", time.Now().Format(eod.DateFormat), "end date (YYYY-MM-DD)")
	viper.BindPFlag("backfill.to", backfillCmd.Flags().Lookup("to"))

	backfillCmd.Flags().Int("workers", 4, "number of parallel download workers")
	viper.BindPFlag("backfill.workers", backfillCmd.Flags().Lookup("workers"))
}
