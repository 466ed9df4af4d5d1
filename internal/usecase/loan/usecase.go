package loan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"collateral-loans/internal/domain/event"
	domain "collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/settlement"
	"collateral-loans/internal/domain/uow"
	"collateral-loans/internal/infrastructure/observability"
	"collateral-loans/pkg/clock"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultEscrow holds collateral and in-flight funds when no escrow account is configured.
var DefaultEscrow = common.HexToAddress("0x000000000000000000000000000000000000e5c0")

const (
	opRequest = "request"
	opFund    = "fund"
	opRepay   = "repay"
	opClaim   = "claim"
)

// Usecase is the loan registry: the only writer of loan records. Every transition runs
// inside one unit of work that locks the loan row, so checks and effects cannot interleave
// with another call on the same loan.
type Usecase struct {
	loans   domain.Repository
	events  event.Repository
	uow     uow.UnitOfWork
	clock   clock.Clock
	escrow  common.Address
	pub     event.Publisher
	log     zerolog.Logger
	metrics *observability.Metrics
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option { return func(u *Usecase) { u.clock = c } }

func WithEscrow(addr common.Address) Option { return func(u *Usecase) { u.escrow = addr } }

// WithPublisher makes committed events leave the service right after commit.
func WithPublisher(p event.Publisher) Option { return func(u *Usecase) { u.pub = p } }

func WithLogger(l zerolog.Logger) Option { return func(u *Usecase) { u.log = l } }

func WithMetrics(m *observability.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

// NewUsecase: loans and events serve reads, tx serves every transition.
func NewUsecase(loans domain.Repository, events event.Repository, tx uow.UnitOfWork, opts ...Option) *Usecase {
	u := &Usecase{
		loans:  loans,
		events: events,
		uow:    tx,
		clock:  clock.System{},
		escrow: DefaultEscrow,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *Usecase) Escrow() common.Address { return u.escrow }

// validCaller rejects the none account and the escrow itself; transfers from escrow to
// escrow move nothing, so escrow can never borrow, lend or repay.
func (u *Usecase) validCaller(caller common.Address) bool {
	return caller != domain.None && caller != u.escrow
}

// Request takes the attached collateral into escrow and records a new loan.
func (u *Usecase) Request(ctx context.Context, in RequestLoanInput) (dto *LoanDTO, err error) {
	defer u.observe(opRequest, time.Now(), &err)

	switch {
	case !u.validCaller(in.Caller):
		return nil, domain.ErrInvalidCaller
	case in.Value == nil || in.Value.Sign() <= 0 || !wei.InRange(in.Value):
		return nil, domain.ErrInvalidCollateral
	case in.Duration == 0:
		return nil, domain.ErrInvalidDuration
	case in.InterestRate > math.MaxUint32:
		return nil, domain.ErrInvalidInterestRate
	}

	var l *domain.Loan
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		now := u.clock.Now()
		due, ok := domain.DueDateFor(now.Unix(), in.Duration)
		if !ok {
			return domain.ErrInvalidDuration
		}
		id, err := r.Loans.NextID(ctx)
		if err != nil {
			return fmt.Errorf("allocate loan id: %w", err)
		}
		l = domain.New(id, in.Caller, in.Value, uint32(in.InterestRate), due)
		if err := r.Loans.Create(ctx, l); err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		if err := r.Settlement.Transfer(ctx, in.Caller, u.escrow, in.Value); err != nil {
			return err
		}
		return u.record(ctx, r, event.TypeLoanRequested, id, event.LoanRequested{
			LoanID:       id,
			Borrower:     l.Borrower,
			Collateral:   l.CollateralAmount,
			LoanAmount:   l.LoanAmount,
			InterestRate: l.InterestRate,
			DueDate:      l.DueDate,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().
		Uint64("loan_id", l.ID).
		Str("borrower", l.Borrower.Hex()).
		Str("collateral", l.CollateralAmount.String()).
		Uint64("due_date", l.DueDate).
		Msg("loan requested")
	return toDTO(l), nil
}

// Fund takes the exact loan amount from the caller and pays it out to the borrower.
func (u *Usecase) Fund(ctx context.Context, in FundLoanInput) (dto *LoanDTO, err error) {
	defer u.observe(opFund, time.Now(), &err)

	if !u.validCaller(in.Caller) {
		return nil, domain.ErrInvalidCaller
	}

	var out *domain.Loan
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(ctx context.Context, r uow.Repos, l *domain.Loan) error {
		now := u.clock.Now()
		if err := l.CheckFund(in.Caller, in.Value, now); err != nil {
			return err
		}
		l.MarkFunded(in.Caller)
		if err := r.Loans.Save(ctx, l); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if err := r.Settlement.Transfer(ctx, in.Caller, u.escrow, in.Value); err != nil {
			return err
		}
		if err := u.record(ctx, r, event.TypeLoanFunded, l.ID, event.LoanFunded{LoanID: l.ID, Lender: in.Caller}, now); err != nil {
			return err
		}
		if err := r.Settlement.Transfer(ctx, u.escrow, l.Borrower, l.LoanAmount.Big()); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Uint64("loan_id", out.ID).Str("lender", out.Lender.Hex()).Msg("loan funded")
	return toDTO(out), nil
}

// Repay accepts principal plus interest from the borrower, returns the collateral and
// forwards the repayment to the lender. Repayment stays open after the due date until the
// collateral is claimed.
func (u *Usecase) Repay(ctx context.Context, in RepayLoanInput) (dto *LoanDTO, err error) {
	defer u.observe(opRepay, time.Now(), &err)

	if !u.validCaller(in.Caller) {
		return nil, domain.ErrInvalidCaller
	}

	var out *domain.Loan
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(ctx context.Context, r uow.Repos, l *domain.Loan) error {
		if err := l.CheckRepay(in.Caller, in.Value); err != nil {
			return err
		}
		total := l.TotalDue()
		l.MarkRepaid()
		if err := r.Loans.Save(ctx, l); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if err := r.Settlement.Transfer(ctx, in.Caller, u.escrow, in.Value); err != nil {
			return err
		}
		if err := u.record(ctx, r, event.TypeLoanRepaid, l.ID, event.LoanRepaid{LoanID: l.ID}, u.clock.Now()); err != nil {
			return err
		}
		if err := r.Settlement.Transfer(ctx, u.escrow, l.Borrower, l.CollateralAmount.Big()); err != nil {
			return err
		}
		if err := r.Settlement.Transfer(ctx, u.escrow, l.Lender, total); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Uint64("loan_id", out.ID).Msg("loan repaid")
	return toDTO(out), nil
}

// Claim hands the collateral of an overdue, unrepaid loan to its lender.
func (u *Usecase) Claim(ctx context.Context, in ClaimCollateralInput) (dto *LoanDTO, err error) {
	defer u.observe(opClaim, time.Now(), &err)

	if !u.validCaller(in.Caller) {
		return nil, domain.ErrInvalidCaller
	}

	var out *domain.Loan
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(ctx context.Context, r uow.Repos, l *domain.Loan) error {
		now := u.clock.Now()
		if err := l.CheckClaim(in.Caller, now); err != nil {
			return err
		}
		l.MarkClaimed()
		if err := r.Loans.Save(ctx, l); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if err := u.record(ctx, r, event.TypeCollateralClaimed, l.ID, event.CollateralClaimed{LoanID: l.ID}, now); err != nil {
			return err
		}
		if err := r.Settlement.Transfer(ctx, u.escrow, l.Lender, l.CollateralAmount.Big()); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Uint64("loan_id", out.ID).Str("lender", out.Lender.Hex()).Msg("collateral claimed")
	return toDTO(out), nil
}

func (u *Usecase) Get(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	l, err := u.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDTO(l), nil
}

// ListByAccount returns every loan the account borrowed or funded.
func (u *Usecase) ListByAccount(ctx context.Context, account common.Address) ([]LoanDTO, error) {
	ls, err := u.loans.ListByAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(ls))
	for i := range ls {
		out = append(out, *toDTO(&ls[i]))
	}
	return out, nil
}

// Events returns the recorded history of one loan in commit order.
func (u *Usecase) Events(ctx context.Context, loanID uint64) ([]EventDTO, error) {
	if _, err := u.Get(ctx, loanID); err != nil {
		return nil, err
	}
	es, err := u.events.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := make([]EventDTO, 0, len(es))
	for i := range es {
		out = append(out, toEventDTO(&es[i]))
	}
	return out, nil
}

// record appends the event to the outbox of the running transaction and publishes it once
// that transaction commits.
func (u *Usecase) record(ctx context.Context, r uow.Repos, t event.Type, loanID uint64, payload any, at time.Time) error {
	e, err := event.New(t, loanID, payload, at)
	if err != nil {
		return err
	}
	if err := r.Events.Append(ctx, e); err != nil {
		return fmt.Errorf("append %s: %w", t, err)
	}
	uow.AfterCommit(ctx, func() { u.publish(context.WithoutCancel(ctx), e) })
	return nil
}

// publish failures are left to the outbox relay.
func (u *Usecase) publish(ctx context.Context, e *event.Event) {
	if u.pub == nil {
		return
	}
	if err := u.pub.Publish(ctx, e); err != nil {
		u.countPublished("error")
		u.log.Warn().Err(err).Uint64("seq", e.Seq).Str("type", string(e.Type)).Msg("publish event")
		return
	}
	u.countPublished("ok")
	if err := u.events.MarkPublished(ctx, e.Seq, u.clock.Now()); err != nil {
		u.log.Warn().Err(err).Uint64("seq", e.Seq).Msg("mark event published")
	}
}

func (u *Usecase) countPublished(result string) {
	if u.metrics != nil {
		u.metrics.Published.WithLabelValues(result).Inc()
	}
}

func (u *Usecase) observe(op string, start time.Time, errp *error) {
	err := *errp
	if err != nil {
		u.log.Debug().Err(err).Str("op", op).Str("code", ErrorCode(err)).Msg("operation rejected")
	}
	if u.metrics == nil {
		return
	}
	u.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		u.metrics.Rejections.WithLabelValues(op, ErrorCode(err)).Inc()
		return
	}
	u.metrics.Transitions.WithLabelValues(op).Inc()
}

// ErrorCode is the stable code reported for err: a domain code, "TransferFailed" or
// "Internal".
func ErrorCode(err error) string {
	if code := domain.Code(err); code != "" {
		return code
	}
	if errors.Is(err, settlement.ErrTransferFailed) {
		return "TransferFailed"
	}
	return "Internal"
}
