package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ApplyResult reports what an apply run did. Skipped counts proposals whose
// line or split was taken by a concurrent apply between derivation and write.
type ApplyResult struct {
	Applied int  `json:"applied"`
	Skipped int  `json:"skipped"`
	DryRun  bool `json:"dry_run"`
}

// Propose derives candidate matches without writing anything. Splits are
// pulled from the period widened by the date window on both ends, so a
// transaction recorded a few days before the statement cut still pairs up.
func (s *Service) Propose(ctx context.Context, p Params) ([]Proposal, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListUnmatchedLines(ctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return nil, err
	}
	splitStart, splitEnd := widenPeriod(p)
	splits, err := s.repo.ListUnmatchedSplits(ctx, p.AccountID, splitStart, splitEnd)
	if err != nil {
		return nil, err
	}
	return matchProposals(lines, splits, p), nil
}

// Apply re-derives proposals inside one unit of work and persists them.
// matchIDs, when non-empty, selects a subset by proposal ordinal; the
// ordinals only line up when the parameters match the preceding Propose
// call and nothing changed in between, which the re-derivation guarantees
// for the common single-operator flow. With dryRun the derivation runs but
// nothing is written.
func (s *Service) Apply(ctx context.Context, p Params, matchIDs []int, dryRun bool) (ApplyResult, error) {
	if err := validateParams(p); err != nil {
		return ApplyResult{}, err
	}
	wanted := map[int]struct{}{}
	for _, id := range matchIDs {
		wanted[id] = struct{}{}
	}

	var result ApplyResult
	result.DryRun = dryRun
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.ListUnmatchedLines(ctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		if err != nil {
			return err
		}
		splitStart, splitEnd := widenPeriod(p)
		splits, err := tx.ListUnmatchedSplits(ctx, p.AccountID, splitStart, splitEnd)
		if err != nil {
			return err
		}
		for _, proposal := range matchProposals(lines, splits, p) {
			if len(wanted) > 0 {
				if _, ok := wanted[proposal.ID]; !ok {
					continue
				}
			}
			if dryRun {
				result.Applied++
				continue
			}
			ok, err := tx.SetMatched(ctx, proposal.LineID, proposal.SplitID)
			if err != nil {
				return err
			}
			if ok {
				result.Applied++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	s.logger.Info("reconcile apply",
		slog.Int64("account_id", p.AccountID),
		slog.Int("applied", result.Applied),
		slog.Int("skipped", result.Skipped),
		slog.Bool("dry_run", dryRun))
	return result, nil
}

// Unmatch clears existing matches in the window. The caller must say what to
// clear: specific line ids, specific split ids, or everything.
func (s *Service) Unmatch(ctx context.Context, p Params, lineIDs, splitIDs []int64, all bool) (int64, error) {
	if err := validateParams(p); err != nil {
		return 0, err
	}
	if !all && len(lineIDs) == 0 && len(splitIDs) == 0 {
		return 0, fmt.Errorf("%w: unmatch requires line ids, split ids, or all", shared.ErrInvalidArgument)
	}
	var cleared int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if all {
			n, err := tx.ClearAllMatches(ctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
			cleared = n
			return err
		}
		if len(lineIDs) > 0 {
			n, err := tx.ClearMatchesByLines(ctx, p.AccountID, p.PeriodStart, p.PeriodEnd, lineIDs)
			if err != nil {
				return err
			}
			cleared += n
		}
		if len(splitIDs) > 0 {
			n, err := tx.ClearMatchesBySplits(ctx, p.AccountID, p.PeriodStart, p.PeriodEnd, splitIDs)
			if err != nil {
				return err
			}
			cleared += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("reconcile unmatch",
		slog.Int64("account_id", p.AccountID),
		slog.Int64("cleared", cleared))
	return cleared, nil
}

// Status summarizes the window. Totals and unmatched sets are bounded by the
// period itself; the widened split window only matters for pairing.
func (s *Service) Status(ctx context.Context, p Params) (StatusReport, error) {
	if err := validateParams(p); err != nil {
		return StatusReport{}, err
	}
	var report StatusReport
	var lines []Line
	var splits []SplitCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountLines(gctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		report.TotalLines = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountSplits(gctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		report.TotalSplits = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountMatched(gctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		report.MatchedPairs = n
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = s.repo.ListUnmatchedLines(gctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		return err
	})
	g.Go(func() error {
		var err error
		splits, err = s.repo.ListUnmatchedSplits(gctx, p.AccountID, p.PeriodStart, p.PeriodEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		return StatusReport{}, err
	}
	report.UnmatchedLines = len(lines)
	report.UnmatchedSplits = len(splits)
	lineSum := decimal.Zero
	for _, l := range lines {
		lineSum = lineSum.Add(l.Amount)
	}
	splitSum := decimal.Zero
	for _, sp := range splits {
		splitSum = splitSum.Add(sp.Amount)
	}
	report.BalanceDiff = lineSum.Sub(splitSum)
	return report, nil
}

func validateParams(p Params) error {
	if p.AccountID <= 0 {
		return fmt.Errorf("%w: account id required", shared.ErrInvalidArgument)
	}
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() {
		return fmt.Errorf("%w: period start and end required", shared.ErrInvalidArgument)
	}
	if p.PeriodEnd.Before(p.PeriodStart) {
		return fmt.Errorf("%w: period end before start", shared.ErrInvalidArgument)
	}
	if p.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: amount tolerance cannot be negative", shared.ErrInvalidArgument)
	}
	if p.DateWindowDays < 0 {
		return fmt.Errorf("%w: date window cannot be negative", shared.ErrInvalidArgument)
	}
	return nil
}

func widenPeriod(p Params) (time.Time, time.Time) {
	return p.PeriodStart.AddDate(0, 0, -p.DateWindowDays), p.PeriodEnd.AddDate(0, 0, p.DateWindowDays)
}
