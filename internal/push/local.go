package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rihigo/notify/internal/model"
)

// settingPermission is the settings key holding the persisted permission.
const settingPermission = "push_permission"

// SubscriptionStore persists the permission decision and the subscription.
type SubscriptionStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	GetSubscription(ctx context.Context) (*model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context) error
}

// Prompter asks the user whether notifications may be shown.
type Prompter interface {
	Prompt(ctx context.Context) (Permission, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context) (Permission, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context) (Permission, error) {
	return f(ctx)
}

// Toaster is where locally displayed notifications end up.
type Toaster interface {
	Add(t model.Toast) string
	Remove(id string)
}

// LocalPlatform receives pushes on the local listener and shows them as
// toasts in the running terminal UI.
type LocalPlatform struct {
	store    SubscriptionStore
	prompter Prompter
	toasts   Toaster
	baseURL  string

	mu     sync.Mutex
	byTag  map[string]string
	latest *model.DisplayNotification
}

// NewLocalPlatform creates a platform whose endpoints live under baseURL
// (for example http://127.0.0.1:7788). An empty baseURL means no listener,
// which makes the platform unsupported.
func NewLocalPlatform(store SubscriptionStore, prompter Prompter, toasts Toaster, baseURL string) *LocalPlatform {
	return &LocalPlatform{
		store:    store,
		prompter: prompter,
		toasts:   toasts,
		baseURL:  strings.TrimRight(baseURL, "/"),
		byTag:    make(map[string]string),
	}
}

// Supported implements Platform.
func (p *LocalPlatform) Supported() bool {
	return p.baseURL != "" && p.store != nil && p.toasts != nil
}

// Permission implements Platform.
func (p *LocalPlatform) Permission() Permission {
	v, ok, err := p.store.GetSetting(context.Background(), settingPermission)
	if err != nil || !ok {
		return PermissionDefault
	}
	return Permission(v)
}

// RequestPermission implements Platform. The user is only asked while the
// decision is still open.
func (p *LocalPlatform) RequestPermission(ctx context.Context) (Permission, error) {
	if current := p.Permission(); current != PermissionDefault {
		return current, nil
	}
	if p.prompter == nil {
		return PermissionDefault, nil
	}

	perm, err := p.prompter.Prompt(ctx)
	if err != nil {
		return PermissionDefault, fmt.Errorf("prompting for permission: %w", err)
	}
	if perm == PermissionDefault {
		return perm, nil
	}

	if err := p.store.SetSetting(ctx, settingPermission, string(perm)); err != nil {
		return perm, fmt.Errorf("saving permission: %w", err)
	}
	return perm, nil
}

// ResetPermission forgets the stored decision so the next request prompts.
func (p *LocalPlatform) ResetPermission(ctx context.Context) error {
	return p.store.SetSetting(ctx, settingPermission, string(PermissionDefault))
}

// Ready implements Platform.
func (p *LocalPlatform) Ready(context.Context) (Registration, error) {
	if !p.Supported() {
		return nil, ErrUnsupported
	}
	return p, nil
}

// Subscription implements Registration.
func (p *LocalPlatform) Subscription(ctx context.Context) (*model.PushSubscription, error) {
	return p.store.GetSubscription(ctx)
}

// Subscribe implements Registration with a fresh P-256 key pair and auth
// secret.
func (p *LocalPlatform) Subscribe(ctx context.Context, applicationServerKey []byte) (*model.PushSubscription, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating subscription key: %w", err)
	}

	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("generating auth secret: %w", err)
	}

	sub := model.PushSubscription{
		Endpoint:             p.baseURL + "/push/" + uuid.NewString(),
		P256DH:               base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:                 base64.RawURLEncoding.EncodeToString(auth),
		ApplicationServerKey: base64.RawURLEncoding.EncodeToString(applicationServerKey),
		CreatedAt:            time.Now().UTC(),
	}

	if err := p.store.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Unsubscribe implements Registration.
func (p *LocalPlatform) Unsubscribe(ctx context.Context) (bool, error) {
	sub, err := p.store.GetSubscription(ctx)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	if err := p.store.DeleteSubscription(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Accepts reports whether endpoint belongs to the current subscription.
func (p *LocalPlatform) Accepts(ctx context.Context, endpoint string) bool {
	sub, err := p.store.GetSubscription(ctx)
	return err == nil && sub != nil && sub.Endpoint == endpoint
}

// ShowNotification implements Displayer. A notification with a tag already
// on screen replaces it.
func (p *LocalPlatform) ShowNotification(_ context.Context, n model.DisplayNotification) error {
	if p.Permission() != PermissionGranted {
		return nil
	}

	t := model.ToastFor(model.Notification{
		Title:    n.Title,
		Body:     n.Body,
		Priority: n.Priority,
	})
	if n.RequireInteraction {
		t.Duration = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byTag[n.Tag]; ok {
		p.toasts.Remove(old)
	}
	p.byTag[n.Tag] = p.toasts.Add(t)
	p.latest = &n

	return nil
}

// CloseNotification implements Displayer.
func (p *LocalPlatform) CloseNotification(_ context.Context, tag string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byTag[tag]; ok {
		p.toasts.Remove(id)
		delete(p.byTag, tag)
	}
	if p.latest != nil && p.latest.Tag == tag {
		p.latest = nil
	}
	return nil
}

// Latest returns the most recently shown notification not yet closed.
func (p *LocalPlatform) Latest() (model.DisplayNotification, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest == nil {
		return model.DisplayNotification{}, false
	}
	return *p.latest, true
}
