package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/migrate"
)

const serviceName = "migrate"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage")

// fileCommands work on the migrations directory only and never open the database.
var fileCommands = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("%w: -name is required for create", errUsage)
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migrations are valid")
		return nil
	},
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|redo|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; the default reads the schema embedded in the binary")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if fn, ok := fileCommands[opts.cmd]; ok {
		if err := fn(opts); err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}

	if err := runAgainstDatabase(opts); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
		}
		os.Exit(1)
	}
}

func runAgainstDatabase(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": opts.cmd, "dir": opts.dir})

	apply, err := gooseCommand(opts)
	if err != nil {
		return err
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logg.Error(ctx, "error closing database", cerr)
		}
	}()

	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to unwrap sql database", err)
		return err
	}

	if err := apply(ctx, sqlDB); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

func gooseCommand(opts options) (func(context.Context, *sql.DB) error, error) {
	switch opts.cmd {
	case "up", "down", "status", "redo":
		return func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
		}, nil
	case "version":
		if opts.version == "" {
			return nil, fmt.Errorf("%w: -version is required for -cmd=version", errUsage)
		}
		return func(ctx context.Context, sqlDB *sql.DB) error {
			return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown -cmd %q", errUsage, opts.cmd)
	}
}
