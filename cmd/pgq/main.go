// pgq runs one query against a PostgreSQL server through the connection
// pool and prints the result rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/prettynatty/sqlx/pkg/config"
	"github.com/prettynatty/sqlx/pkg/pool"
	"github.com/prettynatty/sqlx/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to settings file")
	url := flag.String("url", "", "Connection URL (overrides settings file)")
	command := flag.String("c", "", "SQL to run")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "pgq:", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	settings := config.DefaultSettings()
	if *configPath != "" {
		var err error
		settings, err = config.LoadSettings(*configPath)
		if err != nil {
			logger.Fatal("Failed to load settings", zap.Error(err))
		}
	}
	if *url != "" {
		settings.URL = *url
	}
	if settings.URL == "" {
		fmt.Fprintln(os.Stderr, "pgq: no connection URL; use -url or a settings file")
		os.Exit(2)
	}
	if *command == "" {
		fmt.Fprintln(os.Stderr, "pgq: no query; use -c")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pool.NewBuilder(postgres.Driver{Logger: logger}).
		MaxSize(settings.MaxSize).
		MinSize(settings.MinSize).
		ConnectTimeout(settings.ConnectTimeout).
		MaxLifetime(settings.MaxLifetime).
		IdleTimeout(settings.IdleTimeout).
		TestOnAcquire(settings.TestOnAcquire).
		Logger(logger).
		Build(ctx, settings.URL)
	if err != nil {
		logger.Fatal("Failed to build pool", zap.Error(err))
	}

	if err := run(ctx, p, *command); err != nil {
		fmt.Fprintln(os.Stderr, "pgq:", err)
		p.Close(context.Background())
		os.Exit(1)
	}

	if err := p.Close(ctx); err != nil {
		logger.Error("Failed to close pool", zap.Error(err))
	}
}

func run(ctx context.Context, p *pool.Pool, sql string) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	rows, err := conn.Fetch(ctx, sql, nil)
	if err != nil {
		return err
	}
	defer rows.Close()

	pgRows, ok := rows.(*postgres.Rows)
	if ok {
		var names []string
		for _, col := range pgRows.Columns() {
			names = append(names, col.Name)
		}
		if len(names) > 0 {
			fmt.Println(strings.Join(names, "\t"))
		}
	}

	count := 0
	for rows.Next(ctx) {
		row := rows.Row()
		fields := make([]string, row.Len())
		for i := range fields {
			if pgRow, ok := row.(*postgres.Row); ok {
				s, nonNull := pgRow.Format(i)
				if !nonNull {
					s = "NULL"
				}
				fields[i] = s
			} else if v, nonNull := row.Get(i); nonNull {
				fields[i] = string(v)
			} else {
				fields[i] = "NULL"
			}
		}
		fmt.Println(strings.Join(fields, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "(%d rows)\n", count)
	return nil
}
