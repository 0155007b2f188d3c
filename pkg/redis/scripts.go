package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
	"github.com/angelmondragon/cart-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type scripter interface {
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd
	ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
}

// ScriptHandle identifies a loaded script by name and SHA1 digest.
type ScriptHandle struct {
	Name string
	SHA  string
}

type registeredScript struct {
	handle ScriptHandle
	source string
}

// ScriptRegistry resolves Lua sources to stable handles and runs them with
// EVALSHA, reloading once when the server has lost its script cache.
type ScriptRegistry struct {
	client scripter
	logg   *logger.Logger

	mu      sync.RWMutex
	scripts map[string]registeredScript
}

// NewScriptRegistry builds a registry backed by client.
func NewScriptRegistry(client scripter, logg *logger.Logger) *ScriptRegistry {
	return &ScriptRegistry{
		client:  client,
		logg:    logg,
		scripts: map[string]registeredScript{},
	}
}

// Load registers source under name and makes sure the server holds it.
// Loading is content addressed: identical sources resolve to the cached
// handle, and SCRIPT LOAD is skipped when the server already knows the digest.
func (r *ScriptRegistry) Load(ctx context.Context, name, source string) (ScriptHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ScriptHandle{}, errors.New("script name is required")
	}
	if strings.TrimSpace(source) == "" {
		return ScriptHandle{}, fmt.Errorf("script %q has no source", name)
	}
	if r.client == nil {
		return ScriptHandle{}, errors.New("redis client not initialized")
	}

	sha := redis.NewScript(source).Hash()

	r.mu.RLock()
	existing, ok := r.scripts[name]
	r.mu.RUnlock()
	if ok && existing.handle.SHA == sha {
		return existing.handle, nil
	}

	exists, err := r.client.ScriptExists(ctx, sha).Result()
	if err != nil {
		return ScriptHandle{}, fmt.Errorf("script exists %s: %w", name, err)
	}
	if len(exists) == 0 || !exists[0] {
		if err := r.upload(ctx, name, source, sha); err != nil {
			return ScriptHandle{}, err
		}
	}

	handle := ScriptHandle{Name: name, SHA: sha}
	r.mu.Lock()
	r.scripts[name] = registeredScript{handle: handle, source: source}
	r.mu.Unlock()
	return handle, nil
}

// Handle returns the handle registered under name.
func (r *ScriptRegistry) Handle(name string) (ScriptHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	return s.handle, ok
}

// MustHandle is Handle for wiring code that already loaded name.
func (r *ScriptRegistry) MustHandle(name string) ScriptHandle {
	h, ok := r.Handle(name)
	if !ok {
		panic("redis: script not registered: " + name)
	}
	return h
}

// Handles lists every registered handle ordered by name.
func (r *ScriptRegistry) Handles() []ScriptHandle {
	r.mu.RLock()
	out := make([]ScriptHandle, 0, len(r.scripts))
	for _, s := range r.scripts {
		out = append(out, s.handle)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the script behind h with EVALSHA. A NOSCRIPT reply triggers
// exactly one reload and retry; a second NOSCRIPT is an integrity error.
// A nil script reply is returned as (nil, nil).
func (r *ScriptRegistry) Invoke(ctx context.Context, h ScriptHandle, keys []string, args ...any) (any, error) {
	if r.client == nil {
		return nil, errors.New("redis client not initialized")
	}
	r.mu.RLock()
	registered, ok := r.scripts[h.Name]
	r.mu.RUnlock()
	if !ok || registered.handle.SHA != h.SHA {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "script not registered").
			WithDetails(map[string]any{"script": h.Name})
	}

	res, err := r.evalSha(ctx, h, keys, args)
	if !IsNoScript(err) {
		return res, err
	}

	if r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "script", h.Name), "redis.script_reload")
	}
	if err := r.upload(ctx, h.Name, registered.source, h.SHA); err != nil {
		return nil, err
	}

	res, err = r.evalSha(ctx, h, keys, args)
	if IsNoScript(err) {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "script unavailable after reload").
			WithDetails(map[string]any{"script": h.Name})
		if r.logg != nil {
			r.logg.Error(r.logg.WithField(ctx, "script", h.Name), "redis.script_missing", wrapped)
		}
		return nil, wrapped
	}
	return res, err
}

func (r *ScriptRegistry) evalSha(ctx context.Context, h ScriptHandle, keys []string, args []any) (any, error) {
	res, err := r.client.EvalSha(ctx, h.SHA, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (r *ScriptRegistry) upload(ctx context.Context, name, source, sha string) error {
	loaded, err := r.client.ScriptLoad(ctx, source).Result()
	if err != nil {
		return fmt.Errorf("script load %s: %w", name, err)
	}
	if !strings.EqualFold(loaded, sha) {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "script digest mismatch").
			WithDetails(map[string]any{"script": name, "expected": sha, "got": loaded})
	}
	return nil
}
