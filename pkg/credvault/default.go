package credvault

import (
	"context"
	"fmt"
	"sync"

	"github.com/systmms/credvault/internal/access"
	"github.com/systmms/credvault/internal/manager"
	"github.com/systmms/credvault/pkg/credential"
)

// defaultInstance guards the lazily built process-wide Service. Options are
// settable until first use; afterwards Configure fails rather than silently
// rebuilding under concurrent callers.
var defaultInstance struct {
	mu      sync.Mutex
	opts    *Options
	service *Service
	err     error
}

// Configure sets the options the default instance is built from. It must be
// called before the first package-level accessor; once the instance exists
// the options are frozen until Reset.
func Configure(opts Options) error {
	defaultInstance.mu.Lock()
	defer defaultInstance.mu.Unlock()

	if defaultInstance.service != nil {
		return fmt.Errorf("default instance already initialized; call Reset first")
	}
	defaultInstance.opts = &opts
	defaultInstance.err = nil
	return nil
}

// Default returns the process-wide Service, building it on first use from
// the configured options. A build failure is sticky until Reset.
func Default() (*Service, error) {
	defaultInstance.mu.Lock()
	defer defaultInstance.mu.Unlock()
	return defaultLocked()
}

func defaultLocked() (*Service, error) {
	if defaultInstance.service != nil {
		return defaultInstance.service, nil
	}
	if defaultInstance.err != nil {
		return nil, defaultInstance.err
	}
	if defaultInstance.opts == nil {
		defaultInstance.err = fmt.Errorf("default instance not configured")
		return nil, defaultInstance.err
	}

	svc, err := New(*defaultInstance.opts)
	if err != nil {
		defaultInstance.err = err
		return nil, err
	}
	defaultInstance.service = svc
	return svc, nil
}

// Reset discards the default instance and its options. Tests use this to
// isolate configurations; production code has no reason to call it.
func Reset() {
	defaultInstance.mu.Lock()
	defaultInstance.opts = nil
	defaultInstance.service = nil
	defaultInstance.err = nil
	defaultInstance.mu.Unlock()
}

// DefaultManager returns the default instance's credential manager.
func DefaultManager() (*manager.Manager, error) {
	svc, err := Default()
	if err != nil {
		return nil, err
	}
	return svc.Manager(), nil
}

// DefaultController returns the default instance's access controller.
func DefaultController() (*access.Controller, error) {
	svc, err := Default()
	if err != nil {
		return nil, err
	}
	return svc.Controller(), nil
}

// GetCredential reads key as user through the default instance. Missing
// credentials and decryption failures both come back as ErrUnavailable so
// the result cannot distinguish the two cases.
func GetCredential(ctx context.Context, user, key string) (credential.Credential, error) {
	svc, err := Default()
	if err != nil {
		return credential.Credential{}, err
	}
	cred, err := svc.GetCredential(ctx, user, key)
	return cred, opaqueError(err)
}

// SetCredential stores value under key as user through the default instance.
func SetCredential(ctx context.Context, user, key string, value credential.Value) error {
	svc, err := Default()
	if err != nil {
		return err
	}
	return opaqueError(svc.SetCredential(ctx, user, key, value))
}

// DeleteCredential removes key as user through the default instance.
func DeleteCredential(ctx context.Context, user, key string) error {
	svc, err := Default()
	if err != nil {
		return err
	}
	return opaqueError(svc.DeleteCredential(ctx, user, key))
}

// ListCredentials returns the visible key union as user through the default
// instance.
func ListCredentials(ctx context.Context, user string) ([]string, error) {
	svc, err := Default()
	if err != nil {
		return nil, err
	}
	keys, err := svc.ListCredentials(ctx, user)
	return keys, opaqueError(err)
}
