package generator

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/debtbook/internal/domain"
	"github.com/vanshika/debtbook/internal/service"
)

// Submitter is the part of the debt service a replay drives.
type Submitter interface {
	Register(ctx context.Context, u domain.User) (domain.User, error)
	SubmitMessage(ctx context.Context, sender int64, text string) (service.SubmitResult, error)
}

// IngestReport summarises a replay.
type IngestReport struct {
	Users    int
	Messages int
	Debts    int
	// Rejected counts messages refused with a parse error.
	Rejected int
}

// Ingest registers every user and then submits the messages with up to workers in flight.
// Parse rejections are counted; any other error stops the replay.
func Ingest(ctx context.Context, svc Submitter, ds Dataset, workers int) (IngestReport, error) {
	if workers <= 0 {
		workers = 1
	}
	var report IngestReport

	for _, u := range ds.Users {
		if _, err := svc.Register(ctx, u); err != nil {
			return report, fmt.Errorf("register user %d: %w", u.ID, err)
		}
		report.Users++
	}

	var messages, debts, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, msg := range ds.Messages {
		msg := msg
		g.Go(func() error {
			res, err := svc.SubmitMessage(gctx, msg.SenderID, msg.Text)
			if err != nil {
				if kind, _ := domain.KindOf(err); kind == domain.KindParse {
					rejected.Add(1)
					return nil
				}
				return fmt.Errorf("submit message from %d: %w", msg.SenderID, err)
			}
			messages.Add(1)
			debts.Add(int64(len(res.Debts)))
			return nil
		})
	}
	err := g.Wait()

	report.Messages = int(messages.Load())
	report.Debts = int(debts.Load())
	report.Rejected = int(rejected.Load())
	return report, err
}
