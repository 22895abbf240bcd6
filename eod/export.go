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
package eod

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Date        string  `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Symbol      string  `json:"symbol" parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ISIN        string  `json:"isin" parquet:"name=isin, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Open        float32 `json:"open" parquet:"name=open, type=FLOAT"`
	High        float32 `json:"high" parquet:"name=high, type=FLOAT"`
	Low         float32 `json:"low" parquet:"name=low, type=FLOAT"`
	Close       float32 `json:"close" parquet:"name=close, type=FLOAT"`
	Volume      int64   `json:"volume" parquet:"name=volume, type=INT64, convertedtype=INT_64"`
	TotalTrades int64   `json:"totalTrades" parquet:"name=totalTrades, type=INT64, convertedtype=INT_64"`
	QtyPerTrade float32 `json:"qtyPerTrade" parquet:"name=qtyPerTrade, type=FLOAT"`
	DeliveryQty int64   `json:"deliveryQty" parquet:"name=deliveryQty, type=INT64, convertedtype=INT_64"`
}

func toParquetRow(rec DayRecord) parquetRow {
	p := parquetRow{
		Date:   rec.Row.Date.Format(DateFormat),
		Symbol: rec.Symbol,
		ISIN:   rec.ISIN,
		Open:   float32(rec.Row.Open),
		High:   float32(rec.Row.High),
		Low:    float32(rec.Row.Low),
		Close:  float32(rec.Row.Close),
		Volume: rec.Row.Volume,
	}
	if rec.Row.TotalTrades != nil {
		p.TotalTrades = *rec.Row.TotalTrades
	}
	if rec.Row.QtyPerTrade != nil {
		p.QtyPerTrade = float32(*rec.Row.QtyPerTrade)
	}
	if rec.Row.DeliveryQty != nil {
		p.DeliveryQty = *rec.Row.DeliveryQty
	}
	return p
}

// SaveToParquet mirrors one cycle's appended rows to a parquet file for
// downstream analytics.
func SaveToParquet(records []DayRecord, fn string) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Str("OriginalError", err.Error()).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(parquetRow), 4)
	if err != nil {
		log.Error().
			Str("OriginalError", err.Error()).
			Msg("Parquet write failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_GZIP

	for _, rec := range records {
		row := toParquetRow(rec)
		if err = pw.Write(row); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("EventDate", row.Date).Str("Symbol", row.Symbol).
				Msg("Parquet write failed for record")
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Str("OriginalError", err.Error()).Msg("Parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", len(records)).Msg("Parquet write finished")
	return nil
}

// SaveToDatabase upserts one cycle's appended rows into the nse_eod table.
// Nullable delivery columns pass through as SQL NULL.
func SaveToDatabase(ctx context.Context, records []DayRecord, dsn string) error {
	log.Info().Msg("saving to database")
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Error().Str("OriginalError", err.Error()).Msg("Could not connect to database")
		return err
	}
	defer conn.Close(ctx)

	for _, rec := range records {
		_, err := conn.Exec(ctx,
			`INSERT INTO nse_eod (
			"symbol",
			"isin",
			"event_date",
			"open",
			"high",
			"low",
			"close",
			"volume",
			"total_trades",
			"qty_per_trade",
			"delivery_qty",
			"source"
		) VALUES (
			$1,
			$2,
			$3,
			$4,
			$5,
			$6,
			$7,
			$8,
			$9,
			$10,
			$11,
			$12
		) ON CONFLICT ON CONSTRAINT nse_eod_pkey
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			total_trades = EXCLUDED.total_trades,
			qty_per_trade = EXCLUDED.qty_per_trade,
			delivery_qty = EXCLUDED.delivery_qty,
			source = EXCLUDED.source;`,
			rec.Symbol, rec.ISIN, rec.Row.Date.Format(DateFormat),
			rec.Row.Open, rec.Row.High, rec.Row.Low, rec.Row.Close, rec.Row.Volume,
			rec.Row.TotalTrades, rec.Row.QtyPerTrade, rec.Row.DeliveryQty,
			"nseindia.com")
		if err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("Symbol", rec.Symbol).
				Str("EventDate", rec.Row.Date.Format(DateFormat)).
				Msg("error saving EOD quote to database")
		}
	}

	return nil
}
