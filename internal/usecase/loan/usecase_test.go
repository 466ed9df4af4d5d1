package loan

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"collateral-loans/internal/domain/event"
	domain "collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/settlement"
	"collateral-loans/internal/domain/uow"
	"collateral-loans/internal/infrastructure/observability"
	"collateral-loans/internal/testutil/clockmock"
	"collateral-loans/internal/testutil/eventmock"
	"collateral-loans/internal/testutil/loanmock"
	"collateral-loans/internal/testutil/settlementmock"
	"collateral-loans/internal/testutil/uowmock"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

var (
	borrower = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	lender   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	escrow   = common.HexToAddress("0x00000000000000000000000000000000000000e5")

	start = time.Unix(1_700_000_000, 0).UTC()
)

const week = uint64(7 * 24 * 60 * 60)

func ether() *big.Int { return big.NewInt(params.Ether) }

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

// memLoans keeps loans by value so every load sees only what was saved.
type memLoans struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]domain.Loan
}

func newMemLoans() *memLoans { return &memLoans{rows: map[uint64]domain.Loan{}} }

func (m *memLoans) repo() *loanmock.Repo {
	load := func(_ context.Context, id uint64) (*domain.Loan, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		l, ok := m.rows[id]
		if !ok {
			return nil, nil
		}
		return &l, nil
	}
	return &loanmock.Repo{
		NextIDFn: func(context.Context) (uint64, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			id := m.next
			m.next++
			return id, nil
		},
		CreateFn: func(_ context.Context, l *domain.Loan) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.rows[l.ID] = *l
			return nil
		},
		SaveFn: func(_ context.Context, l *domain.Loan) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.rows[l.ID] = *l
			return nil
		},
		GetByIDForUpdateFn: load,
		GetByIDFn: func(ctx context.Context, id uint64) (*domain.Loan, error) {
			l, _ := load(ctx, id)
			if l == nil {
				return nil, gorm.ErrRecordNotFound
			}
			return l, nil
		},
	}
}

func (m *memLoans) put(l *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[l.ID] = *l
}

type fixture struct {
	loans   *memLoans
	events  *eventmock.Repo
	settle  *settlementmock.Settlement
	pub     *eventmock.Recorder
	clock   *clockmock.Fake
	metrics *observability.Metrics
	appends []event.Type
	marked  []uint64
	uc      *Usecase
}

func newFixture() *fixture {
	f := &fixture{
		loans:   newMemLoans(),
		settle:  &settlementmock.Settlement{},
		pub:     &eventmock.Recorder{},
		clock:   clockmock.New(start),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
	seq := uint64(0)
	f.events = &eventmock.Repo{
		AppendFn: func(_ context.Context, e *event.Event) error {
			seq++
			e.Seq = seq
			f.appends = append(f.appends, e.Type)
			return nil
		},
		MarkPublishedFn: func(_ context.Context, s uint64, _ time.Time) error {
			f.marked = append(f.marked, s)
			return nil
		},
	}
	repo := f.loans.repo()
	tx := uowmock.Passthrough(uow.Repos{Loans: repo, Events: f.events, Settlement: f.settle})
	f.uc = NewUsecase(repo, f.events, tx,
		WithClock(f.clock),
		WithEscrow(escrow),
		WithPublisher(f.pub),
		WithMetrics(f.metrics),
	)
	return f
}

// funded stores loan 0 as requested by borrower with 1 ether and funded by lender.
func (f *fixture) funded() *domain.Loan {
	l := domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week)
	l.MarkFunded(lender)
	f.loans.put(l)
	f.loans.next = 1
	return l
}

func TestRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   RequestLoanInput
		want error
	}{
		{"none caller", RequestLoanInput{Value: ether(), InterestRate: 500, Duration: week}, domain.ErrInvalidCaller},
		{"nil collateral", RequestLoanInput{Caller: borrower, InterestRate: 500, Duration: week}, domain.ErrInvalidCollateral},
		{"zero collateral", RequestLoanInput{Caller: borrower, Value: big.NewInt(0), InterestRate: 500, Duration: week}, domain.ErrInvalidCollateral},
		{"collateral above uint256", RequestLoanInput{Caller: borrower, Value: new(big.Int).Add(math.MaxBig256, big.NewInt(1)), Duration: week}, domain.ErrInvalidCollateral},
		{"zero duration", RequestLoanInput{Caller: borrower, Value: ether(), InterestRate: 500}, domain.ErrInvalidDuration},
		{"rate above uint32", RequestLoanInput{Caller: borrower, Value: ether(), InterestRate: 1 << 32, Duration: week}, domain.ErrInvalidInterestRate},
		{"due date overflow", RequestLoanInput{Caller: borrower, Value: ether(), InterestRate: 500, Duration: ^uint64(0)}, domain.ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			dto, err := f.uc.Request(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if dto != nil {
				t.Fatalf("dto on error: %+v", dto)
			}
			if len(f.settle.Calls()) != 0 || len(f.appends) != 0 {
				t.Fatalf("side effects on validation error")
			}
		})
	}
}

func TestRequest_Happy(t *testing.T) {
	f := newFixture()

	dto, err := f.uc.Request(context.Background(), RequestLoanInput{
		Caller: borrower, Value: ether(), InterestRate: 500, Duration: week,
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if dto.ID != 0 || dto.Borrower != borrower || dto.Lender != domain.None {
		t.Fatalf("dto = %+v", dto)
	}
	if dto.LoanAmount.String() != "666666666666666666" {
		t.Fatalf("loan amount = %s", dto.LoanAmount)
	}
	if dto.TotalDue.String() != "699999999999999999" {
		t.Fatalf("total due = %s", dto.TotalDue)
	}
	if dto.DueDate != uint64(start.Unix())+week {
		t.Fatalf("due date = %d", dto.DueDate)
	}
	if dto.Status != "requested" || dto.CollateralEther != "1" {
		t.Fatalf("status=%s collateral_ether=%s", dto.Status, dto.CollateralEther)
	}

	calls := f.settle.Calls()
	if len(calls) != 1 || calls[0].From != borrower || calls[0].To != escrow || calls[0].Amount.Cmp(ether()) != 0 {
		t.Fatalf("transfers = %+v", calls)
	}
	if got := f.pub.Types(); len(got) != 1 || got[0] != event.TypeLoanRequested {
		t.Fatalf("published = %v", got)
	}
	if len(f.marked) != 1 || f.marked[0] != 1 {
		t.Fatalf("marked = %v", f.marked)
	}
	if got := testutil.ToFloat64(f.metrics.Transitions.WithLabelValues(opRequest)); got != 1 {
		t.Fatalf("transitions = %v", got)
	}

	second, err := f.uc.Request(context.Background(), RequestLoanInput{
		Caller: borrower, Value: big.NewInt(3), Duration: 1,
	})
	if err != nil || second.ID != 1 {
		t.Fatalf("second request: %+v %v", second, err)
	}
}

func TestRequest_ReadsClockAtExecution(t *testing.T) {
	f := newFixture()
	f.clock.Advance(time.Hour)
	dto, err := f.uc.Request(context.Background(), RequestLoanInput{Caller: borrower, Value: ether(), Duration: 10})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if dto.DueDate != uint64(start.Add(time.Hour).Unix())+10 {
		t.Fatalf("due date = %d", dto.DueDate)
	}
}

func TestRequest_TransferFailureAborts(t *testing.T) {
	f := newFixture()
	f.settle.TransferFn = func(context.Context, common.Address, common.Address, *big.Int) error {
		return settlement.ErrTransferFailed
	}
	_, err := f.uc.Request(context.Background(), RequestLoanInput{Caller: borrower, Value: ether(), Duration: week})
	if !errors.Is(err, settlement.ErrTransferFailed) {
		t.Fatalf("want transfer failure, got %v", err)
	}
	if len(f.pub.Types()) != 0 {
		t.Fatalf("event published for aborted request")
	}
	if got := testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(opRequest, "TransferFailed")); got != 1 {
		t.Fatalf("rejections = %v", got)
	}
}

func TestFund(t *testing.T) {
	amount := mustBig("666666666666666666")
	other := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	tests := []struct {
		name   string
		setup  func(f *fixture)
		in     FundLoanInput
		want   error
		checks func(t *testing.T, f *fixture, dto *LoanDTO)
	}{
		{
			name:  "happy path pays principal to borrower",
			setup: func(f *fixture) { f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week)) },
			in:    FundLoanInput{LoanID: 0, Caller: lender, Value: amount},
			checks: func(t *testing.T, f *fixture, dto *LoanDTO) {
				if !dto.IsFunded || dto.Lender != lender || dto.Status != "funded" {
					t.Fatalf("dto = %+v", dto)
				}
				calls := f.settle.Calls()
				if len(calls) != 2 {
					t.Fatalf("transfers = %+v", calls)
				}
				if calls[0].From != lender || calls[0].To != escrow || calls[0].Amount.Cmp(amount) != 0 {
					t.Fatalf("incoming = %+v", calls[0])
				}
				if calls[1].From != escrow || calls[1].To != borrower || calls[1].Amount.Cmp(amount) != 0 {
					t.Fatalf("payout = %+v", calls[1])
				}
				if got := f.pub.Types(); len(got) != 1 || got[0] != event.TypeLoanFunded {
					t.Fatalf("published = %v", got)
				}
			},
		},
		{
			name: "unknown loan",
			in:   FundLoanInput{LoanID: 9, Caller: lender, Value: amount},
			want: domain.ErrNotFound,
		},
		{
			name:  "already funded",
			setup: func(f *fixture) { f.funded() },
			in:    FundLoanInput{LoanID: 0, Caller: other, Value: amount},
			want:  domain.ErrAlreadyFunded,
		},
		{
			name:  "wrong amount",
			setup: func(f *fixture) { f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week)) },
			in:    FundLoanInput{LoanID: 0, Caller: lender, Value: ether()},
			want:  domain.ErrIncorrectFundingAmount,
		},
		{
			name:  "borrower funds own loan",
			setup: func(f *fixture) { f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week)) },
			in:    FundLoanInput{LoanID: 0, Caller: borrower, Value: amount},
			want:  domain.ErrSelfFunding,
		},
		{
			name: "past due date",
			setup: func(f *fixture) {
				f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week))
				f.clock.Advance(time.Duration(week+1) * time.Second)
			},
			in:   FundLoanInput{LoanID: 0, Caller: lender, Value: amount},
			want: domain.ErrLoanExpired,
		},
		{
			name: "none caller",
			in:   FundLoanInput{LoanID: 0, Value: amount},
			want: domain.ErrInvalidCaller,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			before := len(f.settle.Calls())
			dto, err := f.uc.Fund(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if tt.want != nil {
				if len(f.settle.Calls()) != before {
					t.Fatalf("value moved on rejected fund")
				}
				return
			}
			tt.checks(t, f, dto)
		})
	}
}

func TestRepay_PaysBothSides(t *testing.T) {
	f := newFixture()
	f.funded()
	total := mustBig("699999999999999999")

	dto, err := f.uc.Repay(context.Background(), RepayLoanInput{LoanID: 0, Caller: borrower, Value: total})
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if !dto.IsRepaid || dto.Status != "repaid" {
		t.Fatalf("dto = %+v", dto)
	}
	calls := f.settle.Calls()
	if len(calls) != 3 {
		t.Fatalf("transfers = %+v", calls)
	}
	if calls[1].To != borrower || calls[1].Amount.Cmp(ether()) != 0 {
		t.Fatalf("collateral release = %+v", calls[1])
	}
	if calls[2].To != lender || calls[2].Amount.Cmp(total) != 0 {
		t.Fatalf("lender payment = %+v", calls[2])
	}
}

func TestRepay_AfterDueDateStillAccepted(t *testing.T) {
	f := newFixture()
	f.funded()
	f.clock.Advance(30 * 24 * time.Hour)
	if _, err := f.uc.Repay(context.Background(), RepayLoanInput{LoanID: 0, Caller: borrower, Value: mustBig("699999999999999999")}); err != nil {
		t.Fatalf("late repay: %v", err)
	}
}

func TestRepay_Rejections(t *testing.T) {
	total := mustBig("699999999999999999")
	tests := []struct {
		name  string
		setup func(f *fixture)
		in    RepayLoanInput
		want  error
	}{
		{"unknown loan", nil, RepayLoanInput{LoanID: 3, Caller: borrower, Value: total}, domain.ErrNotFound},
		{"not funded", func(f *fixture) {
			f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week))
		}, RepayLoanInput{LoanID: 0, Caller: borrower, Value: total}, domain.ErrNotFunded},
		{"lender repays", func(f *fixture) { f.funded() }, RepayLoanInput{LoanID: 0, Caller: lender, Value: total}, domain.ErrWrongCaller},
		{"principal only", func(f *fixture) { f.funded() }, RepayLoanInput{LoanID: 0, Caller: borrower, Value: mustBig("666666666666666666")}, domain.ErrIncorrectRepaymentAmount},
		{"already claimed", func(f *fixture) {
			l := f.funded()
			l.MarkClaimed()
			f.loans.put(l)
		}, RepayLoanInput{LoanID: 0, Caller: borrower, Value: total}, domain.ErrCollateralAlreadyClaimed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			if _, err := f.uc.Repay(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if len(f.settle.Calls()) != 0 {
				t.Fatalf("value moved on rejected repay")
			}
		})
	}
}

func TestClaim(t *testing.T) {
	f := newFixture()
	l := f.funded()
	due := time.Unix(int64(l.DueDate), 0)
	ctx := context.Background()

	f.clock.Set(due.Add(-time.Second))
	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender}); !errors.Is(err, domain.ErrNotYetDue) {
		t.Fatalf("one second early: %v", err)
	}
	f.clock.Set(due)
	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender}); !errors.Is(err, domain.ErrNotYetDue) {
		t.Fatalf("at due date: %v", err)
	}
	f.clock.Set(due.Add(time.Second))
	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: borrower}); !errors.Is(err, domain.ErrWrongCaller) {
		t.Fatalf("borrower claim: %v", err)
	}

	dto, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !dto.CollateralClaimed || dto.Status != "claimed" {
		t.Fatalf("dto = %+v", dto)
	}
	calls := f.settle.Calls()
	if len(calls) != 1 || calls[0].From != escrow || calls[0].To != lender || calls[0].Amount.Cmp(ether()) != 0 {
		t.Fatalf("transfers = %+v", calls)
	}

	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender}); !errors.Is(err, domain.ErrCollateralAlreadyClaimed) {
		t.Fatalf("second claim: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(opClaim, "NotYetDue")); got != 2 {
		t.Fatalf("NotYetDue rejections = %v", got)
	}
}

func TestClaim_UnfundedAndUnknown(t *testing.T) {
	f := newFixture()
	l := domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week)
	f.loans.put(l)
	f.clock.Set(time.Unix(int64(l.DueDate)+1, 0))
	ctx := context.Background()

	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender}); !errors.Is(err, domain.ErrNotFunded) {
		t.Fatalf("claim unfunded: %v", err)
	}
	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 9, Caller: lender}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("claim unknown: %v", err)
	}
	if n := len(f.settle.Calls()); n != 0 {
		t.Fatalf("transfers = %d", n)
	}
	if got := testutil.ToFloat64(f.metrics.Rejections.WithLabelValues(opClaim, "LoanNotFound")); got != 1 {
		t.Fatalf("LoanNotFound rejections = %v", got)
	}
}

func TestEscrowCannotTakePart(t *testing.T) {
	f := newFixture()
	l := f.funded()
	ctx := context.Background()

	if _, err := f.uc.Request(ctx, RequestLoanInput{Caller: escrow, Value: ether(), InterestRate: 500, Duration: week}); !errors.Is(err, domain.ErrInvalidCaller) {
		t.Fatalf("escrow request: %v", err)
	}
	open := domain.New(1, borrower, ether(), 500, uint64(start.Unix())+week)
	f.loans.put(open)
	if _, err := f.uc.Fund(ctx, FundLoanInput{LoanID: 1, Caller: escrow, Value: open.LoanAmount.Big()}); !errors.Is(err, domain.ErrInvalidCaller) {
		t.Fatalf("escrow fund: %v", err)
	}
	if _, err := f.uc.Repay(ctx, RepayLoanInput{LoanID: 0, Caller: escrow, Value: l.TotalDue()}); !errors.Is(err, domain.ErrInvalidCaller) {
		t.Fatalf("escrow repay: %v", err)
	}
	f.clock.Set(time.Unix(int64(l.DueDate)+1, 0))
	if _, err := f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: escrow}); !errors.Is(err, domain.ErrInvalidCaller) {
		t.Fatalf("escrow claim: %v", err)
	}
	if n := len(f.settle.Calls()); n != 0 {
		t.Fatalf("transfers = %d", n)
	}
	if n := len(f.appends); n != 0 {
		t.Fatalf("events = %d", n)
	}
}

func TestFund_ReentrantCallFromPayoutIsRejected(t *testing.T) {
	f := newFixture()
	f.loans.put(domain.New(0, borrower, ether(), 500, uint64(start.Unix())+week))
	amount := mustBig("666666666666666666")

	var reentrant error
	f.settle.TransferFn = func(ctx context.Context, from, to common.Address, _ *big.Int) error {
		if from == escrow && to == borrower {
			// borrower tries to fund again while receiving the principal
			_, reentrant = f.uc.Fund(ctx, FundLoanInput{LoanID: 0, Caller: lender, Value: amount})
		}
		return nil
	}

	if _, err := f.uc.Fund(context.Background(), FundLoanInput{LoanID: 0, Caller: lender, Value: amount}); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if !errors.Is(reentrant, domain.ErrAlreadyFunded) {
		t.Fatalf("re-entrant fund: %v", reentrant)
	}
	if got := f.pub.Types(); len(got) != 1 {
		t.Fatalf("published = %v", got)
	}
}

func TestRepay_ReentrantClaimIsRejected(t *testing.T) {
	f := newFixture()
	f.funded()
	f.clock.Advance(time.Duration(week+1) * time.Second)

	var reentrant error
	f.settle.TransferFn = func(ctx context.Context, _, to common.Address, _ *big.Int) error {
		if to == lender {
			_, reentrant = f.uc.Claim(ctx, ClaimCollateralInput{LoanID: 0, Caller: lender})
		}
		return nil
	}

	if _, err := f.uc.Repay(context.Background(), RepayLoanInput{LoanID: 0, Caller: borrower, Value: mustBig("699999999999999999")}); err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if !errors.Is(reentrant, domain.ErrLoanAlreadyRepaid) {
		t.Fatalf("re-entrant claim: %v", reentrant)
	}
}

func TestPublishFailureLeavesEventForRelay(t *testing.T) {
	f := newFixture()
	f.pub.Err = errors.New("broker down")

	if _, err := f.uc.Request(context.Background(), RequestLoanInput{Caller: borrower, Value: ether(), Duration: week}); err != nil {
		t.Fatalf("Request must not fail on publish: %v", err)
	}
	if len(f.marked) != 0 {
		t.Fatalf("unpublished event marked: %v", f.marked)
	}
	if got := testutil.ToFloat64(f.metrics.Published.WithLabelValues("error")); got != 1 {
		t.Fatalf("publish errors = %v", got)
	}
}

func TestGet_And_Events(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.uc.Get(ctx, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if _, err := f.uc.Events(ctx, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Events missing: %v", err)
	}

	f.funded()
	f.events.ListByLoanIDFn = func(_ context.Context, id uint64) ([]event.Event, error) {
		return []event.Event{{Seq: 1, LoanID: id, Type: event.TypeLoanRequested, Payload: []byte(`{"id":0}`)}}, nil
	}
	dto, err := f.uc.Get(ctx, 0)
	if err != nil || dto.Status != "funded" {
		t.Fatalf("Get: %+v %v", dto, err)
	}
	es, err := f.uc.Events(ctx, 0)
	if err != nil || len(es) != 1 || es[0].Type != "LoanRequested" {
		t.Fatalf("Events: %+v %v", es, err)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		domain.ErrNotYetDue:            "NotYetDue",
		settlement.ErrTransferFailed:   "TransferFailed",
		errors.New("connection reset"): "Internal",
	}
	for err, want := range cases {
		if got := ErrorCode(err); got != want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
