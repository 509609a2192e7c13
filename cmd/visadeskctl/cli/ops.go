package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/notify"
	"github.com/visadesk/visadesk/jobs"
)

// Enqueuer submits notification dispatch tasks. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueNotificationDispatch(ctx context.Context, payload jobs.NotificationDispatchPayload) (*asynq.TaskInfo, error)
}

// TokenIssuer signs bearer tokens. *authz.TokenVerifier satisfies it.
type TokenIssuer interface {
	Issue(subject string, role authz.Role, grants []string, ttl time.Duration) (string, error)
}

// OpsCLI wraps manual operator helpers for the notification queue and tokens.
type OpsCLI struct {
	enqueuer  Enqueuer
	inspector jobs.QueueInspector
	issuer    TokenIssuer
	closers   []func() error
	now       func() time.Time
}

// NewOpsCLI initialises the helpers against a Redis address and signing secret.
func NewOpsCLI(redisAddr, secret, issuer string) (*OpsCLI, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("ops cli: signing secret required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	inspector := asynq.NewInspector(opts)
	cli := NewOpsCLIWith(client, inspector, authz.NewTokenVerifier(secret, issuer))
	cli.closers = []func() error{inspector.Close, client.Close}
	return cli, nil
}

// NewOpsCLIWith assembles the helpers from explicit collaborators.
func NewOpsCLIWith(enqueuer Enqueuer, inspector jobs.QueueInspector, issuer TokenIssuer) *OpsCLI {
	return &OpsCLI{enqueuer: enqueuer, inspector: inspector, issuer: issuer, now: time.Now}
}

// Close releases underlying resources.
func (c *OpsCLI) Close() error {
	var err error
	for _, closeFn := range c.closers {
		if closeErr := closeFn(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TokenOptions describes a token to mint for local tooling.
type TokenOptions struct {
	Subject     string
	Role        string
	Permissions []string
	TTL         time.Duration
}

// IssueToken signs a token for the given identity.
func (c *OpsCLI) IssueToken(opts TokenOptions) (string, error) {
	if c == nil || c.issuer == nil {
		return "", errors.New("ops cli: token issuer not configured")
	}
	if strings.TrimSpace(opts.Subject) == "" {
		return "", errors.New("ops cli: subject required")
	}
	role := authz.Role(strings.ToLower(strings.TrimSpace(opts.Role)))
	if !role.IsValid() {
		return "", fmt.Errorf("ops cli: unknown role %q", opts.Role)
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return c.issuer.Issue(opts.Subject, role, opts.Permissions, opts.TTL)
}

// SendOptions describes a hand-crafted notification.
type SendOptions struct {
	Recipients  []string
	Kind        string
	Message     string
	SubjectType string
	SubjectID   string
}

// SendNotification enqueues a notification for the given recipients.
func (c *OpsCLI) SendNotification(ctx context.Context, opts SendOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, errors.New("ops cli: client not configured")
	}
	recipients := notify.Recipients(opts.Recipients...)
	if len(recipients) == 0 {
		return nil, errors.New("ops cli: at least one recipient required")
	}
	kind := notify.Kind(opts.Kind)
	if kind == "" {
		kind = notify.KindInfo
	}
	ev := notify.NewEvent(kind, opts.SubjectType, opts.SubjectID, opts.Message, c.now())
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return c.enqueuer.EnqueueNotificationDispatch(ctx, jobs.NotificationDispatchPayload{Recipients: recipients, Event: ev})
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *OpsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("ops cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}
