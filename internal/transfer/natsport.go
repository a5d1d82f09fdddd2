package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	subjectPull = "riskpool.transfers.pull"
	subjectPush = "riskpool.transfers.push"
)

// NATSPort executes transfers via request/reply against an external custody
// service. A timeout, a missing responder, or a negative reply are all
// definite failures: custody only moves value when it replies ok.
type NATSPort struct {
	nc      *nats.Conn
	timeout time.Duration
	logger  zerolog.Logger
}

type transferRequest struct {
	RequestID string `json:"request_id"`
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
}

type transferReply struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func NewNATSPort(nc *nats.Conn, timeout time.Duration, logger zerolog.Logger) *NATSPort {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSPort{nc: nc, timeout: timeout, logger: logger}
}

func (p *NATSPort) Pull(ctx context.Context, account uuid.UUID, amount int64) error {
	return p.request(ctx, subjectPull, account, amount)
}

func (p *NATSPort) Push(ctx context.Context, account uuid.UUID, amount int64) error {
	return p.request(ctx, subjectPush, account, amount)
}

func (p *NATSPort) request(ctx context.Context, subject string, account uuid.UUID, amount int64) error {
	req := transferRequest{
		RequestID: uuid.NewString(),
		Account:   account.String(),
		Amount:    amount,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg, err := p.nc.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		p.logger.Warn().
			Str("subject", subject).
			Str("account", req.Account).
			Int64("amount", amount).
			Err(err).
			Msg("transfer request failed")
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	var reply transferReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("%w: malformed reply: %v", ErrRejected, err)
	}
	if !reply.OK {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Reason)
	}
	return nil
}
