// Package push implements the push-provider interface (spec.md §1 "out of
// scope... Apple push delivery... assumed available as a function that
// returns success/failure", §6: "(device_token, title, body, instance_id)
// -> {ok|err}"). The original pipeline this spec was distilled from calls
// the Python apns2 library with token-based (ES256 JWT) auth
// (original_source/pipeline/intervention_selector/src/apns.py); the Go
// equivalent in the example pack's dependency surface is
// github.com/sideshow/apns2, used here directly rather than hand-rolled.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// ErrSendFailed covers any non-2xx/non-"10xxxxxx" APNs response. Push
// failures are always non-fatal to the caller (spec.md §4.D step 10,
// §7): the instance simply remains in status "created".
var ErrSendFailed = errors.New("push: delivery failed")

// Provider delivers a single push notification. Implementations must
// never panic or block indefinitely — the selector treats delivery as
// best-effort (spec.md §4.D step 10).
type Provider interface {
	Send(ctx context.Context, deviceToken, title, body, instanceID string) error
}

// Config holds APNs token-auth credentials (spec.md's push config,
// mirrored from the original's APNS_KEY_ID/APNS_TEAM_ID/APNS_BUNDLE_ID/
// APNS_KEY_PATH environment variables).
type Config struct {
	TeamID     string
	KeyID      string
	BundleID   string
	PrivateKey []byte // PEM-encoded .p8 signing key contents
	Sandbox    bool
}

// APNsProvider sends notifications via Apple's HTTP/2 push gateway using
// token-based (ES256 JWT) authentication.
type APNsProvider struct {
	client   *apns2.Client
	bundleID string
}

// NewAPNsProvider builds a provider from cfg. Fails fast if the signing
// key cannot be parsed — this is a startup-time configuration error
// (spec.md §7 Fatal), not a per-request one.
func NewAPNsProvider(cfg Config) (*APNsProvider, error) {
	authKey, err := token.AuthKeyFromBytes(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse APNs signing key: %w", err)
	}

	tok := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tok)
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return &APNsProvider{client: client, bundleID: cfg.BundleID}, nil
}

// Send delivers one notification. The instance id rides along as custom
// payload data so the client can deep-link back to it.
func (p *APNsProvider) Send(ctx context.Context, deviceToken, title, body, instanceID string) error {
	pl := payload.NewPayload().
		AlertTitle(title).
		AlertBody(body).
		Sound("default").
		Badge(1).
		Custom("intervention_instance_id", instanceID)

	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.bundleID,
		Payload:     pl,
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if !res.Sent() {
		return fmt.Errorf("%w: status=%d reason=%s", ErrSendFailed, res.StatusCode, res.Reason)
	}
	return nil
}

// NoopProvider always reports failure — used when push.enabled is false
// (config default), so the selector's delivery step runs uniformly
// without a real APNs credential set and correctly leaves every instance
// in status "created" rather than fabricating a "sent" transition.
type NoopProvider struct{}

func (NoopProvider) Send(context.Context, string, string, string, string) error {
	return ErrSendFailed
}
