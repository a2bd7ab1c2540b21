package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/address"
	"github.com/bissquit/subledger/internal/pkg/ctxlog"
	"github.com/bissquit/subledger/internal/transferhook"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Config contains program configuration.
type Config struct {
	ProgramID   solana.PublicKey
	FeeLamports uint64
	Duration    time.Duration
	Treasury    solana.PublicKey
}

// FeeTransferer moves the subscription fee inside the payment transaction.
type FeeTransferer interface {
	TransferTx(ctx context.Context, tx pgx.Tx, from, to solana.PublicKey, lamports uint64) error
}

// MintReader looks up token mints.
type MintReader interface {
	GetMint(ctx context.Context, mint solana.PublicKey) (*domain.Mint, error)
}

// Service implements the subscription program.
type Service struct {
	repo      Repository
	metaLists transferhook.Repository
	fees      FeeTransferer
	mints     MintReader
	config    Config
	now       func() time.Time
}

// NewService creates a new subscription service.
func NewService(repo Repository, metaLists transferhook.Repository, fees FeeTransferer, mints MintReader, config Config) *Service {
	return &Service{
		repo:      repo,
		metaLists: metaLists,
		fees:      fees,
		mints:     mints,
		config:    config,
		now:       time.Now,
	}
}

// Config returns the program configuration.
func (s *Service) Config() Config {
	return s.config
}

// Address returns the subscription record address of owner.
func (s *Service) Address(owner solana.PublicKey) (solana.PublicKey, error) {
	return address.Subscription(s.config.ProgramID, owner)
}

// ExtraAccountMetas returns the extra accounts the hook needs at transfer time:
// the subscription record of the transferring owner.
func ExtraAccountMetas() []domain.ExtraAccountMeta {
	return []domain.ExtraAccountMeta{
		{
			Seeds: []domain.Seed{
				domain.LiteralSeed([]byte(address.SubscriptionSeed)),
				domain.AccountKeySeed(domain.TransferAccountOwner),
			},
			IsSigner:   false,
			IsWritable: false,
		},
	}
}

// Initialize creates owner's subscription record with zero expiry.
// payer is the signer funding the instruction and may differ from owner.
func (s *Service) Initialize(ctx context.Context, payer, owner solana.PublicKey) (*domain.Subscription, error) {
	addr, err := s.Address(owner)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	sub := &domain.Subscription{
		Address:         addr,
		Owner:           owner,
		ExpiryTimestamp: 0,
	}
	if err := s.repo.CreateSubscriptionTx(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", addr, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	subscriptionsInitialized.Inc()
	ctxlog.FromContext(ctx).Info("subscription initialized",
		"owner", owner,
		"payer", payer,
		"address", addr,
	)

	return sub, nil
}

// PayInput holds the accounts of a payment instruction.
type PayInput struct {
	Payer          solana.PublicKey
	Subscription   solana.PublicKey
	FeeDestination solana.PublicKey
}

// Pay transfers the fixed fee from the payer to the treasury and extends the
// payer's subscription by one period. Both effects commit together or not at all.
func (s *Service) Pay(ctx context.Context, input PayInput) (*domain.Subscription, *domain.PaymentEvent, error) {
	addr, err := s.Address(input.Payer)
	if err != nil {
		return nil, nil, err
	}
	if err := address.Expect("subscription account", input.Subscription, addr); err != nil {
		return nil, nil, err
	}
	if err := address.Expect("fee destination", input.FeeDestination, s.config.Treasury); err != nil {
		return nil, nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	// Row lock serializes concurrent payments for the same owner.
	sub, err := s.repo.GetSubscriptionForUpdateTx(ctx, tx, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("get subscription %s: %w", addr, err)
	}

	if err := s.fees.TransferTx(ctx, tx, input.Payer, input.FeeDestination, s.config.FeeLamports); err != nil {
		return nil, nil, fmt.Errorf("transfer fee: %w", err)
	}

	now := s.now()
	previous := sub.ExpiryTimestamp
	next := domain.NextExpiry(previous, now, s.config.Duration)

	if err := s.repo.UpdateExpiryTx(ctx, tx, addr, next); err != nil {
		return nil, nil, fmt.Errorf("update expiry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}

	sub.ExpiryTimestamp = next
	event := &domain.PaymentEvent{
		Signature:      uuid.NewString(),
		Payer:          input.Payer,
		FeeDestination: input.FeeDestination,
		Amount:         s.config.FeeLamports,
		PreviousExpiry: previous,
		NewExpiry:      next,
		PaidAt:         now,
	}

	renewal := previous > now.Unix()
	recordPayment(renewal, event.Amount)
	ctxlog.FromContext(ctx).Info("subscription paid",
		"signature", event.Signature,
		"payer", input.Payer,
		"fee_lamports", event.Amount,
		"previous_expiry", previous,
		"new_expiry", next,
		"early_renewal", renewal,
	)

	return sub, event, nil
}

// Get returns owner's subscription record.
func (s *Service) Get(ctx context.Context, owner solana.PublicKey) (*domain.Subscription, error) {
	addr, err := s.Address(owner)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.GetSubscription(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", addr, err)
	}
	return sub, nil
}

// Now returns the program clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Authorize checks that owner may transfer: the record at subscriptionAddr
// must be owner's and must expire strictly after now. Nothing is modified.
func (s *Service) Authorize(ctx context.Context, tx pgx.Tx, owner, subscriptionAddr solana.PublicKey) error {
	expected, err := s.Address(owner)
	if err != nil {
		return err
	}
	if err := address.Expect("subscription account", subscriptionAddr, expected); err != nil {
		recordHookDecision(decisionMalformed)
		return err
	}

	sub, err := s.repo.GetSubscriptionTx(ctx, tx, subscriptionAddr)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			recordHookDecision(decisionNotFound)
		}
		return fmt.Errorf("get subscription %s: %w", subscriptionAddr, err)
	}
	if !sub.Owner.Equals(owner) {
		recordHookDecision(decisionMalformed)
		return fmt.Errorf("%w: subscription %s belongs to %s", domain.ErrMalformed, subscriptionAddr, sub.Owner)
	}

	now := s.now()
	if !sub.IsActive(now) {
		recordHookDecision(decisionExpired)
		ctxlog.FromContext(ctx).Info("transfer rejected",
			"owner", owner,
			"expiry", sub.ExpiryTimestamp,
			"now", now.Unix(),
		)
		return domain.ErrSubscriptionExpired
	}

	recordHookDecision(decisionAllowed)
	return nil
}

// Execute implements transferhook.Hook. The token ledger calls it inside the
// transfer transaction with the resolved extra accounts.
func (s *Service) Execute(ctx context.Context, tx pgx.Tx, exec transferhook.Execution) error {
	if len(exec.ExtraAccounts) != 1 {
		recordHookDecision(decisionMalformed)
		return fmt.Errorf("%w: expected 1 extra account, got %d", domain.ErrMalformed, len(exec.ExtraAccounts))
	}
	return s.Authorize(ctx, tx, exec.Owner, exec.ExtraAccounts[0])
}

// InitializeExtraAccountMetaList stores the extra accounts the hook needs for
// transfers of mint. The mint must name this program as its transfer hook.
func (s *Service) InitializeExtraAccountMetaList(ctx context.Context, payer, mintAddr solana.PublicKey) (*domain.ExtraAccountMetaList, error) {
	mint, err := s.mints.GetMint(ctx, mintAddr)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: mint %s does not exist", domain.ErrMalformed, mintAddr)
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	if !mint.HasTransferHook() || !mint.TransferHookProgram.Equals(s.config.ProgramID) {
		return nil, fmt.Errorf("%w: mint %s is not hooked to program %s", domain.ErrMalformed, mintAddr, s.config.ProgramID)
	}

	addr, err := address.ExtraAccountMetaList(s.config.ProgramID, mintAddr)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	list := &domain.ExtraAccountMetaList{
		Address:   addr,
		Mint:      mintAddr,
		ProgramID: s.config.ProgramID,
		Metas:     ExtraAccountMetas(),
	}
	if err := s.metaLists.CreateMetaListTx(ctx, tx, list); err != nil {
		return nil, fmt.Errorf("create extra account meta list %s: %w", addr, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	ctxlog.FromContext(ctx).Info("extra account meta list initialized",
		"mint", mintAddr,
		"payer", payer,
		"address", addr,
	)
	return list, nil
}

// GetExtraAccountMetaList returns the extra account meta list of mint.
func (s *Service) GetExtraAccountMetaList(ctx context.Context, mint solana.PublicKey) (*domain.ExtraAccountMetaList, error) {
	addr, err := address.ExtraAccountMetaList(s.config.ProgramID, mint)
	if err != nil {
		return nil, err
	}
	list, err := s.metaLists.GetMetaList(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get extra account meta list %s: %w", addr, err)
	}
	return list, nil
}

// CountActive returns the number of subscriptions active now.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx, s.now())
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
