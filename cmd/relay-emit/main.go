// relay-emit sends a single ticket event to a running relay. It is meant for
// operators and smoke tests; business code uses the emit package directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/lorrc/severino-relay/internal/config"
	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/emit"
)

type options struct {
	envFile      string
	relayURL     string
	event        string
	room         string
	ticketID     string
	ticketNumber string
	title        string
	actorID      string
	actorName    string
	targetID     string
	at           string
	timeout      time.Duration
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options

	flagSet := pflag.NewFlagSet("relay-emit", pflag.ContinueOnError)
	flagSet.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	flagSet.StringVar(&opts.relayURL, "url", "", "relay base URL (default: EMIT_RELAY_URL)")
	flagSet.StringVarP(&opts.event, "event", "e", "", "event kind: ticket:assigned, ticket:new, ticket:execution_registered, ticket:closed")
	flagSet.StringVar(&opts.room, "room", "", "override the conventional room for the event")
	flagSet.StringVar(&opts.ticketID, "ticket-id", "", "ticket id (required)")
	flagSet.StringVar(&opts.ticketNumber, "ticket-number", "", "human facing ticket number")
	flagSet.StringVar(&opts.title, "title", "", "ticket title")
	flagSet.StringVar(&opts.actorID, "actor-id", "", "user who performed the action (required)")
	flagSet.StringVar(&opts.actorName, "actor-name", "", "display name of the actor")
	flagSet.StringVar(&opts.targetID, "target-id", "", "assignee for ticket:assigned, recipient for ticket:closed")
	flagSet.StringVar(&opts.at, "at", "", "event time in RFC 3339 (default: now)")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "request timeout (default: EMIT_TIMEOUT)")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := config.LoadEmit(opts.envFile)
	if err != nil {
		return err
	}
	if opts.relayURL != "" {
		cfg.RelayURL = opts.relayURL
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}

	room, payload, err := buildEvent(opts)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := emit.NewClient(cfg.RelayURL, cfg.Secret, cfg.Timeout)

	result := client.Emit(context.Background(), room, payload)
	emit.LogResult(logger, room, payload.Kind(), result)
	if !result.OK() {
		return errors.New(result.Reason)
	}
	return nil
}

// buildEvent assembles the payload and picks the room the emit helpers
// would use unless --room overrides it.
func buildEvent(opts options) (string, domain.Payload, error) {
	at := opts.at
	if at == "" {
		at = time.Now().UTC().Format(time.RFC3339)
	}
	ref := domain.TicketRef{
		TicketID:     opts.ticketID,
		TicketNumber: domain.TicketNumber(opts.ticketNumber),
		Title:        opts.title,
		At:           at,
	}
	actor := domain.ActorRef{ID: opts.actorID, Name: opts.actorName}

	var room string
	var payload domain.Payload

	switch domain.EventKind(opts.event) {
	case domain.EventTicketAssigned:
		if opts.targetID == "" {
			return "", nil, errors.New("--target-id is required for ticket:assigned")
		}
		room = domain.UserRoom(opts.targetID)
		payload = &domain.TicketAssignedPayload{TicketRef: ref, AssignedBy: actor, AssignedTo: domain.ActorRef{ID: opts.targetID}}
	case domain.EventTicketNew:
		room = domain.ManagersRoom
		payload = &domain.TicketNewPayload{TicketRef: ref, OpenedBy: actor}
	case domain.EventExecutionRegistered:
		room = domain.ManagersRoom
		payload = &domain.ExecutionRegisteredPayload{TicketRef: ref, ExecutedBy: actor}
	case domain.EventTicketClosed:
		if opts.targetID == "" {
			return "", nil, errors.New("--target-id is required for ticket:closed")
		}
		room = domain.UserRoom(opts.targetID)
		payload = &domain.TicketClosedPayload{TicketRef: ref, ClosedBy: actor}
	default:
		return "", nil, fmt.Errorf("unknown --event %q", opts.event)
	}

	if opts.room != "" {
		room = opts.room
	}
	return room, payload, nil
}
