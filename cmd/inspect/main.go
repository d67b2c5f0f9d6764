package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/chat"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"WARN"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Inspect error: %v\n", err)
		os.Exit(1)
	}
}

// run dumps stored messages as a table, optionally for a single conversation.
// The database is opened read-only so a running relay keeps its lock.
func run(args []string, out io.Writer) error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	dbPath := flags.String("db", config.BadgerFilepath, "Path to badger DB")
	first := flags.String("a", "", "First participant (requires -b)")
	second := flags.String("b", "", "Second participant (requires -a)")
	limit := flags.Int("limit", 0, "Maximum number of rows, 0 for all")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if (*first == "") != (*second == "") {
		return fmt.Errorf("-a and -b must be given together")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var conversation *domain.ConversationKey
	if *first != "" {
		key := domain.NewConversationKey(*first, *second)
		conversation = &key
	}
	return dump(context.Background(), db, logs.GetLoggerFromString(config.LogLevel), conversation, *limit, out)
}

func dump(ctx context.Context, db *badger.DB, log *slog.Logger, conversation *domain.ConversationKey, limit int, out io.Writer) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Created At", "Sender", "Receiver", "Message", "ID", "Key"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	repository := repositories.NewMessageRepository(db, log, nil, nil)
	rows := 0
	err := repository.Scan(ctx, conversation, func(r repositories.Record) bool {
		if r.Err != nil {
			table.Append([]string{"-", "-", "-", "<" + r.Err.Error() + ">", "-", r.Key})
		} else {
			table.Append([]string{
				r.Message.CreatedAt.Format(time.RFC3339Nano),
				r.Message.SenderID,
				r.Message.ReceiverID,
				truncate(r.Message.Message, 60),
				r.Message.ID.String(),
				r.Key,
			})
		}
		rows++
		return limit <= 0 || rows < limit
	})
	if err != nil {
		return err
	}
	table.Render()
	fmt.Fprintf(out, "\n%d record(s)\n", rows)
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
