// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"log"
	"os"
	"time"

	"github.com/poiesic/groundwork/transport/natsrpc"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "groundwork",
		Usage: "Grounded question answering over a local document set",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"GROUNDWORK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Load documents from the data root and index them",
				Action: ingestCommand,
			},
			{
				Name:   "reingest",
				Usage:  "Clear the index and ingest the data root from scratch",
				Action: reingestCommand,
			},
			{
				Name:      "retrieve",
				Usage:     "Print the passages retrieved for a query",
				ArgsUsage: "QUERY",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of passages to return (0 uses the configured default)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
			},
			{
				Name:   "metrics",
				Usage:  "Print the metrics snapshot of this process",
				Action: metricsCommand,
			},
			{
				Name:   "count",
				Usage:  "Print the number of stored chunks",
				Action: countCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve engine operations over NATS request/reply",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "nats-url",
						Usage: "NATS server URL (overrides [nats].url)",
					},
					&cli.DurationFlag{
						Name:  "request-timeout",
						Usage: "Upper bound on a single request",
						Value: 2 * time.Minute,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Requests handled concurrently",
						Value: natsrpc.DefaultWorkers,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Address to serve Prometheus metrics on, e.g. :9464 (empty disables)",
					},
					&cli.BoolFlag{
						Name:  "ingest",
						Usage: "Ingest the data root before serving",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Reingest whenever documents under the data root change",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a burst of changes triggers a reingest",
						Value: defaultDebounce,
					},
				},
			},
		},
	}
}
