package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/internal/bootstrap"
	"github.com/noah-isme/gema-weekly-report/internal/config"
	"github.com/noah-isme/gema-weekly-report/internal/dto"
	"github.com/noah-isme/gema-weekly-report/internal/service"
)

const usage = `reportctl runs weekly report operations without the HTTP server.

Usage:
  reportctl students -phone <mobile number>
  reportctl generate -phone <mobile number> [-format text|pdf]
  reportctl preview  -student <id>

Configuration is read from GEMA_* environment variables and .env.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reportctl:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	phone := flags.String("phone", "", "registered mobile number")
	format := flags.String("format", "", "artifact format: text or pdf (default from config)")
	studentID := flags.Uint("student", 0, "student id for preview")
	verbose := flags.Bool("verbose", false, "log at debug level")

	switch command {
	case "students", "generate", "preview":
	case "-h", "-help", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	resources, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer resources.Close()

	switch command {
	case "students":
		students, err := resources.Reports.ListStudents(ctx, *phone)
		if err != nil {
			return err
		}
		return printJSON(out, students)
	case "generate":
		result, err := resources.Reports.Generate(ctx, dto.WeeklyReportRequest{MobileNumber: *phone, Format: *format})
		if err != nil {
			return err
		}
		return printJSON(out, result)
	default:
		if *studentID == 0 {
			return service.ErrStudentNotFound
		}
		preview, err := resources.Reports.Preview(ctx, *studentID)
		if err != nil {
			return err
		}
		return printJSON(out, preview)
	}
}

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
