//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/weaviate/nativeindex/adapters/repos/db/nativeindex"
	enterrors "github.com/weaviate/nativeindex/entities/errors"
	"github.com/weaviate/nativeindex/usecases/config"
)

func populateCommand() *cli.Command {
	return &cli.Command{
		Name:      "populate",
		Usage:     "build an index file from csv rows of entity,value[,type]",
		ArgsUsage: "<index> <csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "yaml file with populator settings",
				EnvVars: []string{"NATIVE_INDEX_CONFIG"},
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Value: 1000,
				Usage: "number of rows applied in one store transaction",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write the prometheus metrics of the run to this file",
			},
		},
		Action: populate,
	}
}

func populate(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("populate: expected <index> and <csv> arguments")
	}
	path, input := c.Args().Get(0), c.Args().Get(1)
	logger := loggerFrom(c)

	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return errors.Errorf("batch-size must be positive, got %d", batchSize)
	}

	cfg, err := config.Load(c.String("config"), logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	prom, err := nativeindex.NewPrometheusMetrics(reg)
	if err != nil {
		return err
	}

	opts := append(cfg.Options(),
		nativeindex.WithLogger(logger),
		nativeindex.WithMetrics(nativeindex.NewMetrics(prom, filepath.Base(path))),
	)
	p, err := nativeindex.NewPopulator(path, nativeindex.NumberLayout{}, opts...)
	if err != nil {
		return err
	}

	if err := p.Create(); err != nil {
		return err
	}

	var result *multierror.Error
	count, err := load(c.Context, logger, p, input, batchSize)
	if err != nil {
		result = multierror.Append(result, err)
		p.MarkAsFailed(err.Error())
		if err := p.Close(false); err != nil {
			result = multierror.Append(result, err)
		}
	} else if err := p.Close(true); err != nil {
		result = multierror.Append(result, err)
	} else {
		logger.WithField("action", "native_index_populate").
			WithField("index", path).
			WithField("entries", count).
			Info("index populated")
	}

	if file := c.String("metrics-file"); file != "" {
		if err := prometheus.WriteToTextfile(file, reg); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "write metrics"))
		}
	}

	return result.ErrorOrNil()
}

// load streams the rows of input into the populator. Parsing and applying
// run concurrently, the first error stops both.
func load(ctx context.Context, logger logrus.FieldLogger, p *nativeindex.Populator,
	input string, batchSize int,
) (int, error) {
	f, err := os.Open(input)
	if err != nil {
		return 0, errors.Wrapf(err, "open %q", input)
	}
	defer f.Close()

	batches := make(chan []nativeindex.EntryUpdate, 4)
	eg, ctx := enterrors.NewErrorGroupWithContextWrapper(logger, ctx, input)

	eg.Go(func() error {
		defer close(batches)
		return readUpdates(ctx, f, batchSize, batches)
	}, "reader")

	count := 0
	eg.Go(func() error {
		for batch := range batches {
			if err := p.Add(batch); err != nil {
				return err
			}
			count += len(batch)
		}
		return nil
	}, "writer")

	err = eg.Wait()
	return count, err
}

func readUpdates(ctx context.Context, r io.Reader, batchSize int,
	out chan<- []nativeindex.EntryUpdate,
) error {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	send := func(batch []nativeindex.EntryUpdate) error {
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	batch := make([]nativeindex.EntryUpdate, 0, batchSize)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read csv")
		}

		line, _ := cr.FieldPos(0)
		u, err := parseRow(record)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}

		batch = append(batch, u)
		if len(batch) == batchSize {
			if err := send(batch); err != nil {
				return err
			}
			batch = make([]nativeindex.EntryUpdate, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		return send(batch)
	}
	return nil
}

func parseRow(record []string) (nativeindex.EntryUpdate, error) {
	if len(record) < 2 || len(record) > 3 {
		return nativeindex.EntryUpdate{}, errors.Errorf("expected entity,value[,type], got %d fields", len(record))
	}

	entityID, err := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return nativeindex.EntryUpdate{}, errors.Wrap(err, "entity id")
	}

	typeName := ""
	if len(record) == 3 {
		typeName = record[2]
	}
	v, err := nativeindex.ParseValue(record[1], typeName)
	if err != nil {
		return nativeindex.EntryUpdate{}, err
	}

	return nativeindex.Add(entityID, nativeindex.NumberLayout{}.Encode(v)), nil
}
