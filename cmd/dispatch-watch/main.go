// dispatch-watch follows the dispatch API from the command line.
//
// Feed mode (default) polls the open-request feed as a professional and
// alerts once per cycle when the open set grew. Without --interval it polls
// at the rate the server advertises on the feed. With --claim it also
// attempts to claim the newest request after each alert, exactly once per
// request.
//
// Observe mode (--observe <request id>) follows one request's status as a
// customer until it settles.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/nurpe/dispatch-core/internal/client"
	"github.com/nurpe/dispatch-core/internal/model"
	"github.com/nurpe/dispatch-core/internal/service"
)

type options struct {
	server      string
	token       string
	interval    time.Duration
	intervalSet bool
	claim       bool
	observe     string
	verbose     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("dispatch-watch", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.server, "server", "http://localhost:7090", "dispatch API base URL")
	flagSet.StringVar(&opts.token, "token", os.Getenv("DISPATCH_TOKEN"), "bearer token (default $DISPATCH_TOKEN)")
	flagSet.DurationVar(&opts.interval, "interval", service.DefaultFeedPollInterval, "poll interval")
	flagSet.BoolVar(&opts.claim, "claim", false, "claim the newest request whenever new requests arrive")
	flagSet.StringVar(&opts.observe, "observe", "", "follow the status of one request instead of the feed")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.token == "" {
		return options{}, fmt.Errorf("--token or DISPATCH_TOKEN is required")
	}
	opts.intervalSet = flagSet.Changed("interval")
	if opts.interval <= 0 {
		return options{}, fmt.Errorf("--interval must be positive")
	}
	if opts.claim && opts.observe != "" {
		return options{}, fmt.Errorf("--claim and --observe are mutually exclusive")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(opts.server, opts.token, nil)

	if opts.observe != "" {
		id, err := uuid.Parse(opts.observe)
		if err != nil {
			return fmt.Errorf("invalid request id %q", opts.observe)
		}
		return observe(ctx, api, id, opts.interval, stdout, log)
	}

	w := &watcher{
		api:   api,
		claim: opts.claim,
		self:  professionalFromToken(opts.token),
		out:   stdout,
		log:   log,
		tried: make(map[uuid.UUID]struct{}),
	}
	interval := feedInterval(ctx, api, opts, log)
	poller := service.NewFeedPoller(api, interval, func(update service.FeedUpdate) {
		w.onUpdate(ctx, update)
	}, log)
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type intervalSource interface {
	service.OpenRequestLister
	PollInterval() time.Duration
}

// feedInterval picks an explicit --interval first, then the interval the
// server advertises on the feed, then the flag default.
func feedInterval(ctx context.Context, api intervalSource, opts options, log zerolog.Logger) time.Duration {
	if opts.intervalSet {
		return opts.interval
	}
	if _, err := api.ListOpenRequests(ctx); err != nil {
		log.Warn().Err(err).Msg("advertised poll interval unavailable")
		return opts.interval
	}
	if advertised := api.PollInterval(); advertised > 0 {
		log.Debug().Dur("interval", advertised).Msg("using advertised poll interval")
		return advertised
	}
	return opts.interval
}

func observe(ctx context.Context, api *client.Client, id uuid.UUID, interval time.Duration, out io.Writer, log zerolog.Logger) error {
	retry := service.ReadRetry{MaxRetries: 3, Backoff: interval / 2}
	tracker := service.NewTrackerService(api, interval, retry, log)

	snapshots, err := tracker.Observe(ctx, id)
	if err != nil {
		return err
	}
	for snap := range snapshots {
		line := fmt.Sprintf("%s  %s  %s", time.Now().Format(time.Kitchen), snap.Request.Status, snap.Label)
		if snap.Request.ProfessionalName != nil {
			line += "  " + *snap.Request.ProfessionalName
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

type claimer interface {
	Claim(ctx context.Context, id uuid.UUID) (service.ClaimResult, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error)
}

type watcher struct {
	api   claimer
	claim bool
	self  uuid.UUID
	out   io.Writer
	log   zerolog.Logger
	tried map[uuid.UUID]struct{}
}

func (w *watcher) onUpdate(ctx context.Context, update service.FeedUpdate) {
	w.log.Debug().Int("open", len(update.IDs)).Msg("feed refreshed")
	if !update.NewArrival {
		return
	}
	fmt.Fprintf(w.out, "new request: %d open\n", len(update.Requests))
	for _, req := range update.Requests {
		fmt.Fprintf(w.out, "  %s  %-28s %8s  %s\n", req.ID.String()[:8], req.ServiceName, req.Price.Total.StringFixed(2), req.Address)
	}

	if w.claim && len(update.Requests) > 0 {
		w.claimNewest(ctx, update.Requests[0])
	}
}

// claimNewest sends one claim per request id. When the response is lost in
// transit the request row decides the outcome; the claim is never re-sent.
func (w *watcher) claimNewest(ctx context.Context, req model.ServiceRequest) {
	if _, done := w.tried[req.ID]; done {
		return
	}
	w.tried[req.ID] = struct{}{}

	result, err := w.api.Claim(ctx, req.ID)
	if err != nil {
		result, err = w.resolve(ctx, req.ID, err)
	}
	if err != nil {
		w.log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("claim outcome unknown")
		return
	}

	if result.Won() {
		fmt.Fprintf(w.out, "claimed %s (%s)\n", req.ID, req.ServiceName)
		return
	}
	fmt.Fprintf(w.out, "lost %s: %s\n", req.ID, result.Reason)
}

func (w *watcher) resolve(ctx context.Context, id uuid.UUID, cause error) (service.ClaimResult, error) {
	if !errors.Is(cause, service.ErrStoreUnavailable) {
		return service.ClaimResult{}, cause
	}
	row, err := w.api.Get(ctx, id)
	if err != nil {
		return service.ClaimResult{}, cause
	}
	switch {
	case w.self == uuid.Nil || row.Status == model.RequestStatusSearching:
		return service.ClaimResult{}, cause
	case row.Status == model.RequestStatusClaimed && row.OwnedBy(w.self):
		return service.ClaimResult{Outcome: service.ClaimWon, Request: row}, nil
	default:
		return service.ClaimResult{Outcome: service.ClaimLost, Reason: service.ErrClaimLost.Error()}, nil
	}
}

// professionalFromToken reads the subject without verifying the signature;
// the server does the verification.
func professionalFromToken(token string) uuid.UUID {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}
