package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RiskPool/internal/event"
	"RiskPool/internal/gate"
	bpsmath "RiskPool/internal/math"
	"RiskPool/internal/observability"
	"RiskPool/internal/pool"
	"RiskPool/internal/transfer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// shareScanInterval controls how often the full share-sum scan runs.
// The scan is O(accounts); every mutation still checks capital >= 0.
const shareScanInterval = 1000

// Output is what the engine emits per committed event.
type Output struct {
	Envelope *event.Envelope
	Event    event.Event
}

// SettleResult summarizes one settlement batch.
type SettleResult struct {
	SettledCount int
	Skipped      int
	TotalPaid    int64
}

// Engine is the pooled-capital state machine. One mutex serializes every
// mutation; each call either commits fully or leaves state untouched.
type Engine struct {
	mu sync.Mutex

	sequence        int64
	capital         int64
	shares          *pool.ShareRegistry
	policies        *pool.PolicyRegistry
	reserveRatioBps int64
	paused          bool

	port transfer.Port
	gate gate.Gate
	now  func() time.Time

	metrics *observability.Metrics
	logger  zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
	publishChan    chan<- Output
}

func NewEngine(
	reserveRatioBps int64,
	port transfer.Port,
	g gate.Gate,
	persistChan, projectionChan, publishChan chan<- Output,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) (*Engine, error) {
	if !bpsmath.ValidBps(reserveRatioBps) {
		return nil, fmt.Errorf("%w: reserve ratio %d bps", ErrInvalidRatio, reserveRatioBps)
	}
	if port == nil {
		return nil, fmt.Errorf("transfer port is required")
	}
	if g == nil {
		return nil, fmt.Errorf("gate is required")
	}

	return &Engine{
		shares:          pool.NewShareRegistry(),
		policies:        pool.NewPolicyRegistry(),
		reserveRatioBps: reserveRatioBps,
		port:            port,
		gate:            g,
		now:             time.Now,
		metrics:         metrics,
		logger:          logger.With().Str("component", "engine").Logger(),
		persistChan:     persistChan,
		projectionChan:  projectionChan,
		publishChan:     publishChan,
	}, nil
}

// Deposit pulls amount from the account and mints proportional LP shares.
// Bootstrap deposits (empty pool or zero shares outstanding) mint 1:1.
func (e *Engine) Deposit(ctx context.Context, account uuid.UUID, amount int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if e.paused {
		e.reject("deposit", "paused")
		return 0, ErrPaused
	}
	if amount <= 0 {
		e.reject("deposit", "invalid_amount")
		return 0, fmt.Errorf("%w: deposit amount %d", ErrInvalidAmount, amount)
	}

	if err := e.port.Pull(ctx, account, amount); err != nil {
		e.reject("deposit", "transfer_failed")
		if e.metrics != nil {
			e.metrics.TransferFailures.WithLabelValues("pull").Inc()
		}
		return 0, fmt.Errorf("%w: pull deposit from %s: %v", ErrTransferFailed, account, err)
	}

	// Mint ratio uses the pre-credit capital so late depositors cannot
	// dilute themselves against their own deposit.
	minted := amount
	if total := e.shares.Total(); total != 0 && e.capital != 0 {
		minted = bpsmath.MulDivFloor(amount, total, e.capital)
	}

	e.capital += amount
	e.shares.Mint(account, minted)

	e.emit(&event.DepositCompleted{
		Account:      account,
		Amount:       amount,
		SharesMinted: minted,
		TotalShares:  e.shares.Total(),
		PoolBalance:  e.capital,
	})
	e.postCheckInvariants()

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("deposit").Inc()
		e.metrics.OpDuration.WithLabelValues("deposit").Observe(time.Since(start).Seconds())
		e.metrics.DepositsTotal.Inc()
		e.metrics.DepositValue.Add(float64(amount))
		if minted == 0 {
			e.metrics.ZeroShareMints.Inc()
		}
		e.updateGauges()
	}

	e.logger.Debug().
		Str("account", account.String()).
		Int64("amount", amount).
		Int64("shares_minted", minted).
		Int64("pool_balance", e.capital).
		Msg("deposit completed")

	return minted, nil
}

// PurchasePolicy pulls the premium into the pool and records a new Active
// policy. maxPayout is deliberately not checked against current capital;
// the cap applies at settlement against whatever capital then remains.
func (e *Engine) PurchasePolicy(
	ctx context.Context,
	owner uuid.UUID,
	premium, maxPayout int64,
	duration time.Duration,
	region string,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if e.paused {
		e.reject("purchase_policy", "paused")
		return 0, ErrPaused
	}
	if premium <= 0 {
		e.reject("purchase_policy", "invalid_amount")
		return 0, fmt.Errorf("%w: premium %d", ErrInvalidAmount, premium)
	}
	if maxPayout <= 0 {
		e.reject("purchase_policy", "invalid_amount")
		return 0, fmt.Errorf("%w: max payout %d", ErrInvalidAmount, maxPayout)
	}
	if duration <= 0 {
		e.reject("purchase_policy", "invalid_duration")
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}

	if err := e.port.Pull(ctx, owner, premium); err != nil {
		e.reject("purchase_policy", "transfer_failed")
		if e.metrics != nil {
			e.metrics.TransferFailures.WithLabelValues("pull").Inc()
		}
		return 0, fmt.Errorf("%w: pull premium from %s: %v", ErrTransferFailed, owner, err)
	}

	e.capital += premium
	p := e.policies.Create(owner, premium, maxPayout, e.now(), duration, region)

	e.emit(&event.PolicyCreated{
		PolicyID:  p.ID,
		Owner:     p.Owner,
		Premium:   p.Premium,
		MaxPayout: p.MaxPayout,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Region:    p.Region,
	})
	e.postCheckInvariants()

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("purchase_policy").Inc()
		e.metrics.OpDuration.WithLabelValues("purchase_policy").Observe(time.Since(start).Seconds())
		e.metrics.PoliciesCreated.Inc()
		e.metrics.PremiumValue.Add(float64(premium))
		e.updateGauges()
	}

	e.logger.Debug().
		Uint64("policy_id", p.ID).
		Str("owner", owner.String()).
		Int64("premium", premium).
		Int64("max_payout", maxPayout).
		Str("region", region).
		Msg("policy created")

	return p.ID, nil
}

// Settle executes one settlement batch at a single payout ratio. Items are
// processed strictly in the given order; missing, already-settled, and
// immature ids are skipped without failing the batch. Each payout is capped
// by the capital remaining when its turn comes, so order decides who
// absorbs a shortfall. A failed payout push reverts that item and the
// batch continues.
func (e *Engine) Settle(
	ctx context.Context,
	caller gate.Principal,
	policyIDs []uint64,
	ratioBps int64,
) (SettleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	var res SettleResult

	if err := e.gate.Authorize(caller, gate.OpSettle); err != nil {
		e.reject("settle", "unauthorized")
		return res, err
	}
	if e.paused {
		e.reject("settle", "paused")
		return res, ErrPaused
	}
	if !bpsmath.ValidBps(ratioBps) {
		e.reject("settle", "invalid_ratio")
		return res, fmt.Errorf("%w: payout ratio %d bps", ErrInvalidRatio, ratioBps)
	}

	now := e.now()

	for _, id := range policyIDs {
		p := e.policies.Get(id)
		if p == nil {
			e.skipItem(&res, id, "missing")
			continue
		}
		if p.Status == pool.StatusSettled {
			e.skipItem(&res, id, "settled")
			continue
		}
		if !p.Matured(now) {
			e.skipItem(&res, id, "immature")
			continue
		}

		raw := bpsmath.ApplyBps(p.MaxPayout, ratioBps)
		payout := raw
		capped := false
		if payout > e.capital {
			payout = e.capital
			capped = true
		}

		if err := e.policies.MarkSettled(id, ratioBps, payout); err != nil {
			e.skipItem(&res, id, "settled")
			continue
		}
		e.capital -= payout

		if payout > 0 {
			if err := e.port.Push(ctx, p.Owner, payout); err != nil {
				// No value moved: undo the debit and the lifecycle
				// transition so the policy can be settled again later.
				e.capital += payout
				e.policies.Revert(id)
				res.Skipped++
				if e.metrics != nil {
					e.metrics.TransferFailures.WithLabelValues("push").Inc()
					e.metrics.SettlementRolledBack.Inc()
				}
				e.logger.Warn().
					Uint64("policy_id", id).
					Int64("payout", payout).
					Err(err).
					Msg("payout push failed, settlement rolled back")
				continue
			}
		}

		e.emit(&event.PolicySettled{
			PolicyID:       id,
			Owner:          p.Owner,
			PayoutRatioBps: ratioBps,
			Payout:         payout,
			Capped:         capped,
			PoolBalance:    e.capital,
		})

		res.SettledCount++
		res.TotalPaid += payout

		if e.metrics != nil {
			e.metrics.PoliciesSettled.Inc()
			e.metrics.PayoutValue.Add(float64(payout))
			if capped {
				e.metrics.SettlementCapped.Inc()
			}
		}
	}

	e.postCheckInvariants()

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("settle").Inc()
		e.metrics.OpDuration.WithLabelValues("settle").Observe(time.Since(start).Seconds())
		e.metrics.BatchesSettled.Inc()
		e.updateGauges()
	}

	e.logger.Info().
		Str("caller", caller.Subject).
		Int("batch_size", len(policyIDs)).
		Int64("ratio_bps", ratioBps).
		Int("settled", res.SettledCount).
		Int("skipped", res.Skipped).
		Int64("total_paid", res.TotalPaid).
		Msg("settlement batch applied")

	return res, nil
}

func (e *Engine) skipItem(res *SettleResult, id uint64, reason string) {
	res.Skipped++
	if e.metrics != nil {
		e.metrics.SettlementSkipped.WithLabelValues(reason).Inc()
	}
	e.logger.Debug().Uint64("policy_id", id).Str("reason", reason).Msg("settlement item skipped")
}

// Withdraw burns shares and pays out the proportional entitlement from the
// capital not held back by the reserve buffer. An entitlement that floors
// to zero fails the whole call rather than burning shares for nothing.
func (e *Engine) Withdraw(ctx context.Context, account uuid.UUID, shareAmount int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if e.paused {
		e.reject("withdraw", "paused")
		return 0, ErrPaused
	}
	if shareAmount <= 0 {
		e.reject("withdraw", "invalid_amount")
		return 0, fmt.Errorf("%w: share amount %d", ErrInvalidAmount, shareAmount)
	}
	if balance := e.shares.Balance(account); balance < shareAmount {
		e.reject("withdraw", "insufficient_shares")
		return 0, fmt.Errorf("%w: account %s holds %d, requested %d",
			ErrInsufficientShares, account, balance, shareAmount)
	}

	reserved := bpsmath.ApplyBps(e.capital, e.reserveRatioBps)
	available := e.capital - reserved
	total := e.shares.Total()
	entitlement := bpsmath.MulDivFloor(available, shareAmount, total)

	if entitlement <= 0 {
		e.reject("withdraw", "insufficient_liquidity")
		return 0, fmt.Errorf("%w: available %d across %d shares", ErrInsufficientAvailableLiquidity, available, total)
	}

	if err := e.shares.Burn(account, shareAmount); err != nil {
		// Balance was checked above; a burn failure here is a bug.
		panic(fmt.Sprintf("FATAL: burn after balance check: %v", err))
	}
	e.capital -= entitlement

	if err := e.port.Push(ctx, account, entitlement); err != nil {
		e.capital += entitlement
		e.shares.Mint(account, shareAmount)
		e.reject("withdraw", "transfer_failed")
		if e.metrics != nil {
			e.metrics.TransferFailures.WithLabelValues("push").Inc()
		}
		return 0, fmt.Errorf("%w: push withdrawal to %s: %v", ErrTransferFailed, account, err)
	}

	e.emit(&event.WithdrawalCompleted{
		Account:      account,
		SharesBurned: shareAmount,
		AmountPaid:   entitlement,
		TotalShares:  e.shares.Total(),
		PoolBalance:  e.capital,
	})
	e.postCheckInvariants()

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("withdraw").Inc()
		e.metrics.OpDuration.WithLabelValues("withdraw").Observe(time.Since(start).Seconds())
		e.metrics.WithdrawalsTotal.Inc()
		e.metrics.WithdrawalValue.Add(float64(entitlement))
		e.updateGauges()
	}

	e.logger.Debug().
		Str("account", account.String()).
		Int64("shares_burned", shareAmount).
		Int64("amount_paid", entitlement).
		Int64("pool_balance", e.capital).
		Msg("withdrawal completed")

	return entitlement, nil
}

// SetReserveRatio updates the withdrawal reserve buffer. Authorized
// callers only; not blocked by pause so the buffer can be tuned during a
// halt.
func (e *Engine) SetReserveRatio(ctx context.Context, caller gate.Principal, bps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.gate.Authorize(caller, gate.OpSetReserveRatio); err != nil {
		e.reject("set_reserve_ratio", "unauthorized")
		return err
	}
	if !bpsmath.ValidBps(bps) {
		e.reject("set_reserve_ratio", "invalid_ratio")
		return fmt.Errorf("%w: reserve ratio %d bps", ErrInvalidRatio, bps)
	}

	old := e.reserveRatioBps
	e.reserveRatioBps = bps

	e.emit(&event.ReserveRatioChanged{OldBps: old, NewBps: bps, By: caller.Subject})

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("set_reserve_ratio").Inc()
		e.metrics.ReserveRatio.Set(float64(bps))
	}

	e.logger.Info().
		Str("caller", caller.Subject).
		Int64("old_bps", old).
		Int64("new_bps", bps).
		Msg("reserve ratio changed")

	return nil
}

// Pause halts all mutating operations except unpause and reserve
// configuration. Idempotent.
func (e *Engine) Pause(ctx context.Context, caller gate.Principal) error {
	return e.setPaused(caller, true)
}

// Unpause lifts the halt. Idempotent.
func (e *Engine) Unpause(ctx context.Context, caller gate.Principal) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller gate.Principal, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.gate.Authorize(caller, gate.OpPause); err != nil {
		e.reject("pause", "unauthorized")
		return err
	}
	if e.paused == paused {
		return nil
	}

	e.paused = paused
	e.emit(&event.PauseToggled{Paused: paused, By: caller.Subject})

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues("pause").Inc()
		if paused {
			e.metrics.Paused.Set(1)
		} else {
			e.metrics.Paused.Set(0)
		}
	}

	e.logger.Info().Str("caller", caller.Subject).Bool("paused", paused).Msg("pause toggled")
	return nil
}

// --- Read views ---

// PoolBalance returns the committed capital pool balance.
func (e *Engine) PoolBalance() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capital
}

// TotalShares returns the total outstanding LP shares.
func (e *Engine) TotalShares() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shares.Total()
}

// ShareBalance returns an account's share balance (zero if unknown).
func (e *Engine) ShareBalance(account uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shares.Balance(account)
}

// GetPolicy returns a copy of the policy record.
func (e *Engine) GetPolicy(id uint64) (pool.Policy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.policies.Get(id)
	if p == nil {
		return pool.Policy{}, false
	}
	return *p, true
}

// ReserveRatioBps returns the configured reserve buffer.
func (e *Engine) ReserveRatioBps() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserveRatioBps
}

// Paused reports whether the pool is halted.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Sequence returns the next event sequence the engine will assign.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// --- Internals (callers hold e.mu) ---

// emit assigns a sequence and sends the event downstream. The persist
// channel send blocks so no committed event is ever lost; projection and
// publish sends drop on full because both can rebuild from the log.
func (e *Engine) emit(payload event.Event) {
	out := Output{
		Envelope: &event.Envelope{
			Sequence:  e.sequence,
			EventType: payload.EventType(),
			Timestamp: e.now(),
		},
		Event: payload,
	}
	e.sequence++

	if e.persistChan != nil {
		e.persistChan <- out
	}
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.Inc()
			}
		}
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.Sequence.Set(float64(e.sequence))
	}
}

func (e *Engine) postCheckInvariants() {
	if e.capital < 0 {
		panic(fmt.Sprintf("FATAL: negative pool capital: %d", e.capital))
	}
	if e.sequence > 0 && e.sequence%shareScanInterval == 0 {
		if err := e.shares.ValidateTotal(); err != nil {
			panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
		}
	}
}

func (e *Engine) reject(op, reason string) {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (e *Engine) updateGauges() {
	e.metrics.PoolBalance.Set(float64(e.capital))
	e.metrics.TotalShares.Set(float64(e.shares.Total()))
}
