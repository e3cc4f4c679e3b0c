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
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/weaviate/nativeindex/adapters/repos/db/nativeindex"
	"github.com/weaviate/nativeindex/adapters/repos/db/pagestore"
	"github.com/weaviate/nativeindex/entities/indexstate"
)

const loggerKey = "logger"

func newApp() *cli.App {
	return &cli.App{
		Name:  "nativeindex",
		Usage: "build and inspect native number index files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "one of trace, debug, info, warn, error",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "json or text",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.String("log-level"), c.String("log-format"))
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]interface{}{loggerKey: logger}
			return nil
		},
		Commands: []*cli.Command{
			populateCommand(),
			{
				Name:      "inspect",
				Usage:     "print the header and descriptor of an index file",
				ArgsUsage: "<index>",
				Action:    inspect,
			},
			{
				Name:      "scan",
				Usage:     "list the entries of an index file in key order",
				ArgsUsage: "<index>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "stop after this many entries, 0 lists all",
					},
				},
				Action: scan,
			},
			{
				Name:      "drop",
				Usage:     "delete an index file, a missing file is an error unless --missing-ok is set",
				ArgsUsage: "<index>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "missing-ok",
						Usage: "succeed if there is no index file",
					},
				},
				Action: drop,
			},
		},
	}
}

func newLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	if format != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log-level")
	}
	logger.SetLevel(parsed)

	return logger, nil
}

func loggerFrom(c *cli.Context) logrus.FieldLogger {
	if logger, ok := c.App.Metadata[loggerKey].(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

func indexArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.Errorf("%s: missing index file argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

func inspect(c *cli.Context) error {
	path, err := indexArg(c)
	if err != nil {
		return err
	}

	r, err := nativeindex.OpenReader(path, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	h, ok, err := r.Header()
	if err != nil {
		return err
	}

	out := c.App.Writer
	if ok {
		fmt.Fprintf(out, "state:\t%s\n", h.State)
		if h.State == indexstate.StateFailed {
			fmt.Fprintf(out, "failure:\t%s\n", h.FailureMessage)
		}
	} else {
		fmt.Fprintf(out, "state:\tunfinished\n")
	}

	desc := r.Descriptor()
	fmt.Fprintf(out, "layout:\t%s\n", desc.Layout)
	fmt.Fprintf(out, "unique:\t%t\n", desc.Unique)
	fmt.Fprintf(out, "same entity policy:\t%s\n", desc.SameEntityPolicy)
	fmt.Fprintf(out, "run id:\t%s\n", desc.RunID)
	return nil
}

func scan(c *cli.Context) error {
	path, err := indexArg(c)
	if err != nil {
		return err
	}

	r, err := nativeindex.OpenReader(path, nativeindex.NumberLayout{})
	if err != nil {
		return err
	}
	defer r.Close()

	limit := c.Int("limit")
	count := 0
	var decodeErr error
	err = r.Entries(func(e nativeindex.Entry) bool {
		v, err := nativeindex.NumberLayout{}.Decode(e.Key)
		if err != nil {
			decodeErr = err
			return false
		}
		fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\n", e.EntityID, v.Type(), v)
		count++
		return limit <= 0 || count < limit
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func drop(c *cli.Context) error {
	path, err := indexArg(c)
	if err != nil {
		return err
	}

	fs := pagestore.OSFileSystem{}
	if !c.Bool("missing-ok") {
		exists, err := fs.FileExists(path)
		if err != nil {
			return errors.Wrapf(err, "check %q", path)
		}
		if !exists {
			return errors.Wrapf(pagestore.ErrNotFound, "drop %q", path)
		}
	}

	p, err := nativeindex.NewPopulator(path, nativeindex.NumberLayout{},
		nativeindex.WithLogger(loggerFrom(c)),
		nativeindex.WithFileSystem(fs))
	if err != nil {
		return err
	}
	return p.Drop()
}
