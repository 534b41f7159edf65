package main

import (
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Persistence URL (memory://, badger:///path, postgres://...)",
		Value:   "memory://",
		Sources: cli.EnvVars("DATABASE_URL"),
	}
}

func eventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		databaseFlag(),
		&cli.StringFlag{
			Name:    "scheduler",
			Usage:   "Delay scheduler (memory, redis://host:6379/0)",
			Value:   "memory",
			Sources: cli.EnvVars("SCHEDULER_URL"),
		},
		&cli.StringFlag{
			Name:    "reentry-policy",
			Usage:   "What a new trigger does to an active run of the same lead (overwrite, skip-active)",
			Value:   "overwrite",
			Sources: cli.EnvVars("REENTRY_POLICY"),
		},
		&cli.StringFlag{
			Name:    "workflows-dir",
			Usage:   "Directory of workflow JSON documents loaded at startup",
			Sources: cli.EnvVars("WORKFLOWS_DIR"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}
