package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowmesh/flowmesh/pkg/log"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "flowmesh",
		Usage:                 "Run the FlowMesh workflow engine and API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (postgres://... or a file root)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for batch trigger sources (empty disables batch schedules)",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "query-endpoint",
				Usage:   "HTTP endpoint evaluating conditional trigger queries (empty disables conditional schedules)",
				Sources: cli.EnvVars("QUERY_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "calendar-endpoint",
				Usage:   "HTTP endpoint listing calendar events (empty disables calendar schedules)",
				Sources: cli.EnvVars("CALENDAR_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "model-endpoint",
				Usage:   "HTTP endpoint invoking models (empty disables model nodes)",
				Sources: cli.EnvVars("MODEL_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "model-candidates",
				Usage:   "Path to a JSON file describing the model candidate pool",
				Sources: cli.EnvVars("MODEL_CANDIDATES"),
			},
			&cli.StringFlag{
				Name:    "retrieval-endpoint",
				Usage:   "HTTP endpoint searching the knowledge store (empty disables retrieval nodes)",
				Sources: cli.EnvVars("RETRIEVAL_ENDPOINT"),
			},
			&cli.IntFlag{
				Name:    "max-workers",
				Usage:   "Number of concurrent queue workers",
				Value:   4,
				Sources: cli.EnvVars("MAX_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Usage:   "Dispatch attempts per queue item before giving up",
				Value:   3,
				Sources: cli.EnvVars("MAX_RETRIES"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export for workflow runs",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			app := &Application{
				Port:              command.Int("port"),
				DatabaseURL:       command.String("database-url"),
				EventBusProvider:  command.String("event-bus"),
				KafkaBrokers:      command.String("kafka-brokers"),
				RedisAddr:         command.String("redis-addr"),
				QueryEndpoint:     command.String("query-endpoint"),
				CalendarEndpoint:  command.String("calendar-endpoint"),
				ModelEndpoint:     command.String("model-endpoint"),
				ModelCandidates:   command.String("model-candidates"),
				RetrievalEndpoint: command.String("retrieval-endpoint"),
				MaxWorkers:        command.Int("max-workers"),
				MaxRetries:        command.Int("max-retries"),
				TracingEnabled:    command.Bool("tracing"),

				logger: log.WithModule("flowmesh"),
			}

			return app.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
