// Package setup assembles the authentication stack described by the
// configuration: registry, event bus, root scope, plugins, directory service
// and authorizer.
package setup

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/casbin/casbin/v2/persist"
	"github.com/go-logr/logr"
	"github.com/mitchellh/mapstructure"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/hkdf"

	"github.com/terraconstructs/pluggableauth/internal/authz"
	"github.com/terraconstructs/pluggableauth/internal/config"
	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/plugins/ftp"
	"github.com/terraconstructs/pluggableauth/internal/plugins/groupfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/httpbasic"
	"github.com/terraconstructs/pluggableauth/internal/plugins/principalfolder"
	"github.com/terraconstructs/pluggableauth/internal/plugins/session"
	"github.com/terraconstructs/pluggableauth/internal/plugins/token"
	"github.com/terraconstructs/pluggableauth/internal/repository"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

// Titles of the implicit groups.
const (
	EveryoneTitle      = "All Users"
	AuthenticatedTitle = "Authenticated Users"
)

// ErrNoTokens is returned by bearer logout when no jwt plugin is configured.
var ErrNoTokens = errors.New("no jwt plugin configured")

// Options carries the collaborators Build does not create itself.
type Options struct {
	// DB enables persistence of folders, grants and revoked tokens. Without
	// it everything lives in memory.
	DB      *bun.DB
	Logger  logr.Logger
	Metrics *telemetry.AuthMetrics
}

// Stack is the assembled authentication stack.
type Stack struct {
	Registry   *authn.Registry
	Bus        *event.Bus
	Scope      *authn.PluggableAuthentication
	Directory  *directory.Service
	Authorizer *authz.Authorizer

	// Tokens is the first jwt plugin, used to issue bearer tokens.
	Tokens *token.Authenticator

	// Sessions lists the session plugins by name.
	Sessions map[string]*session.Plugin
}

// Build assembles the stack and loads the persisted folders.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Stack, error) {
	log := opts.Logger

	s := &Stack{
		Registry: authn.NewRegistry(nil),
		Bus:      event.NewBus(),
		Sessions: make(map[string]*session.Plugin),
	}
	if id := cfg.Auth.EveryoneGroup; id != "" {
		s.Registry.SetEveryoneGroup(authn.SpecialGroup{ID: id, Title: EveryoneTitle})
	}
	if id := cfg.Auth.AuthenticatedGroup; id != "" {
		s.Registry.SetAuthenticatedGroup(authn.SpecialGroup{ID: id, Title: AuthenticatedTitle})
	}

	// Membership first, so the special-group subscriber sees groups already
	// marked.
	groupfolder.Subscribe(s.Bus)
	authn.InstallDefaultSubscribers(s.Bus, s.Registry)

	s.Scope = authn.New(cfg.Auth.Prefix,
		authn.WithRegistry(s.Registry),
		authn.WithEventBus(s.Bus),
		authn.WithLogger(log.WithName("authn")),
		authn.WithMetrics(opts.Metrics),
		authn.WithCredentialsPlugins(cfg.Auth.CredentialsPlugins...),
		authn.WithAuthenticatorPlugins(cfg.Auth.AuthenticatorPlugins...),
	)
	s.Directory = directory.NewService(opts.DB, directory.WithLogger(log.WithName("directory")))

	var denylist token.Denylist
	if opts.DB != nil {
		denylist = repository.NewBunRevokedTokenRepository(opts.DB)
	}

	for _, pc := range cfg.Auth.Plugins {
		plugin, err := s.buildPlugin(cfg, pc, denylist, log.WithName("plugin").WithValues("plugin", pc.Name))
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", pc.Name, err)
		}
		if err := s.install(pc, plugin); err != nil {
			return nil, fmt.Errorf("plugin %q: %w", pc.Name, err)
		}
		log.V(1).Info("plugin installed", "plugin", pc.Name, "type", pc.Type, "global", pc.Global)
	}

	if err := s.Directory.Load(ctx); err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}

	authorizer, err := buildAuthorizer(cfg, opts.DB, log.WithName("authz"))
	if err != nil {
		return nil, err
	}
	s.Authorizer = authorizer

	log.Info("authentication stack ready",
		"prefix", cfg.Auth.Prefix,
		"credentials", cfg.Auth.CredentialsPlugins,
		"authenticators", cfg.Auth.AuthenticatorPlugins)
	return s, nil
}

// install contains plugin in the scope, or registers it globally.
func (s *Stack) install(pc config.PluginConfig, plugin any) error {
	if !pc.Global {
		return s.Scope.AddPlugin(pc.Name, plugin)
	}
	registered := false
	if cp, ok := plugin.(authn.CredentialsPlugin); ok {
		s.Registry.RegisterCredentialsPlugin(pc.Name, cp)
		registered = true
	}
	if ap, ok := plugin.(authn.AuthenticatorPlugin); ok {
		s.Registry.RegisterAuthenticatorPlugin(pc.Name, ap)
		registered = true
	}
	if !registered {
		return fmt.Errorf("type %q cannot be registered globally", pc.Type)
	}
	return nil
}

type folderOptions struct {
	Prefix string `mapstructure:"prefix"`
}

type realmOptions struct {
	Realm string `mapstructure:"realm"`
}

type jwtOptions struct {
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

func (s *Stack) buildPlugin(cfg *config.Config, pc config.PluginConfig, denylist token.Denylist, log logr.Logger) (any, error) {
	switch pc.Type {
	case config.PluginPrincipalFolder:
		var o folderOptions
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		f := principalfolder.New(o.Prefix, principalfolder.WithLogger(log))
		s.Directory.RegisterPrincipalFolder(pc.Name, f)
		return f, nil

	case config.PluginGroupFolder:
		var o folderOptions
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		f := groupfolder.New(o.Prefix, groupfolder.WithLogger(log))
		s.Directory.RegisterGroupFolder(pc.Name, f)
		return f, nil

	case config.PluginHTTPBasic:
		var o realmOptions
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		return httpbasic.New(o.Realm), nil

	case config.PluginFTP:
		if err := decodeOptions(pc.Options, &struct{}{}); err != nil {
			return nil, err
		}
		return ftp.New(), nil

	case config.PluginSession:
		var o session.Options
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		hashKey, blockKey, err := SessionKeys(cfg.SessionSecret)
		if err != nil {
			return nil, err
		}
		p, err := session.New(hashKey, blockKey, o, log)
		if err != nil {
			return nil, err
		}
		s.Sessions[pc.Name] = p
		return p, nil

	case config.PluginBearer:
		var o realmOptions
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		return token.NewBearerPlugin(o.Realm, s.revokeToken), nil

	case config.PluginJWT:
		o := jwtOptions{Issuer: cfg.TokenIssuer, TTL: cfg.TokenTTL}
		if err := decodeOptions(pc.Options, &o); err != nil {
			return nil, err
		}
		tokenOpts := []token.Option{token.WithTTL(o.TTL), token.WithLogger(log)}
		if denylist != nil {
			tokenOpts = append(tokenOpts, token.WithDenylist(denylist))
		}
		a, err := token.NewAuthenticator(cfg.TokenSecret, o.Issuer, tokenOpts...)
		if err != nil {
			return nil, err
		}
		if s.Tokens == nil {
			s.Tokens = a
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown plugin type %q", pc.Type)
}

// revokeToken is resolved at logout time; the jwt plugin may be configured
// after the bearer plugin.
func (s *Stack) revokeToken(ctx context.Context, tok string) error {
	if s.Tokens == nil {
		return ErrNoTokens
	}
	return s.Tokens.Revoke(ctx, tok)
}

func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("options decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

// SessionKeys derives the cookie hash key and AES block key from secret.
func SessionKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return nil, nil, fmt.Errorf("session secret is empty")
	}
	hashKey = make([]byte, 64)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("pauth session hash")), hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive session hash key: %w", err)
	}
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("pauth session block")), blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive session block key: %w", err)
	}
	return hashKey, blockKey, nil
}

func buildAuthorizer(cfg *config.Config, db *bun.DB, log logr.Logger) (*authz.Authorizer, error) {
	opts := []authz.Option{authz.WithLogger(log)}
	if cfg.Auth.EveryoneGroup != "" {
		opts = append(opts, authz.WithAnonymousSubject(cfg.Auth.EveryoneGroup))
	}

	var adapter persist.Adapter
	if db != nil {
		adapter = authz.NewBunAdapter(db)
	}
	a, err := authz.New(adapter, opts...)
	if err != nil {
		return nil, fmt.Errorf("build authorizer: %w", err)
	}

	for _, g := range cfg.Grants {
		if err := a.Grant(authz.Grant{Subject: g.Subject, Object: g.Object, Action: g.Action}); err != nil {
			return nil, fmt.Errorf("grant %s %s %s: %w", g.Subject, g.Action, g.Object, err)
		}
	}
	return a, nil
}
