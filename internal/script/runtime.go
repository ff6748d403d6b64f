// Package script runs Go-source mods in an embedded interpreter. Each loaded
// script gets its own bridge session and its own interpreter, with the
// session's global functions exported under import "modbridge".
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"

	"github.com/zeusync/modbridge/internal/bridge"
	"github.com/zeusync/modbridge/internal/core/observability/log"
)

// ConsoleScript is the name of the interactive session used by Eval.
const ConsoleScript = "console"

// Script is one loaded script instance.
type Script struct {
	name      string
	path      string
	session   *bridge.Session
	interp    *interp.Interpreter
	terminate func()
}

func (s *Script) Name() string { return s.name }
func (s *Script) Path() string { return s.path }
func (s *Script) Session() *bridge.Session { return s.session }

// Runtime owns every loaded script. All calls are expected on the host
// thread; the mutex only guards the table against readers elsewhere.
type Runtime struct {
	bridge *bridge.Bridge
	logger log.Log

	mu      sync.Mutex
	scripts map[string]*Script
}

func NewRuntime(b *bridge.Bridge, logger log.Log) *Runtime {
	return &Runtime{
		bridge:  b,
		logger:  logger.With(log.String("component", "script")),
		scripts: make(map[string]*Script),
	}
}

func (r *Runtime) newInterpreter(s *bridge.Session) *interp.Interpreter {
	i := interp.New(interp.Options{})
	if err := i.Use(restrictedStdlib()); err != nil {
		r.logger.Warn("stdlib exports rejected", log.Error(err))
	}
	if err := i.Use(exportsFor(s, printer(s.Logger()))); err != nil {
		r.logger.Warn("bridge exports rejected", log.Error(err))
	}
	return i
}

// Load evaluates src as script name, replacing a script already loaded
// under that name. Terminate is remembered and Init runs before Load returns.
func (r *Runtime) Load(name, path string, src []byte) (*Script, error) {
	r.Unload(name)

	session := r.bridge.NewSession(name)
	s := &Script{name: name, path: path, session: session}
	s.interp = r.newInterpreter(session)

	if _, err := s.interp.Eval(stripBuildDirectives(string(src))); err != nil {
		session.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	if v, err := s.interp.Eval("Terminate"); err == nil {
		if fn, ok := v.Interface().(func()); ok {
			s.terminate = fn
		}
	}

	r.mu.Lock()
	r.scripts[name] = s
	r.mu.Unlock()

	if v, err := s.interp.Eval("Init"); err == nil {
		if fn, ok := v.Interface().(func()); ok {
			if err := s.call(fn); err != nil {
				r.Unload(name)
				return nil, fmt.Errorf("script %s: init: %w", name, err)
			}
		}
	}
	r.logger.Info("script loaded", log.String("script", name), log.String("path", path))
	return s, nil
}

// call runs a script callback and turns a panic inside it into an error.
func (s *Script) call(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	fn()
	return nil
}

// LoadFile loads one script file, named after its base name.
func (r *Runtime) LoadFile(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return r.Load(name, path, src)
}

// LoadDir loads every file in dir matching pattern. A broken script does
// not stop the others; all errors come back joined.
func (r *Runtime) LoadDir(dir, pattern string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("script: %w", err)
	}
	sort.Strings(paths)
	var (
		loaded int
		errs   []error
	)
	for _, p := range paths {
		if _, err := r.LoadFile(p); err != nil {
			r.logger.Error("script load failed", log.String("path", p), log.Error(err))
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// Unload runs Terminate and closes the script's session.
func (r *Runtime) Unload(name string) bool {
	r.mu.Lock()
	s, ok := r.scripts[name]
	delete(r.scripts, name)
	r.mu.Unlock()
	if !ok {
		return false
	}
	if s.terminate != nil {
		if err := s.call(s.terminate); err != nil {
			r.logger.Warn("terminate failed", log.String("script", name), log.Error(err))
		}
	}
	s.session.Close()
	r.logger.Info("script unloaded", log.String("script", name))
	return true
}

// Get returns a loaded script.
func (r *Runtime) Get(name string) (*Script, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scripts[name]
	return s, ok
}

// Names lists loaded scripts alphabetically.
func (r *Runtime) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.scripts))
	for n := range r.scripts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Eval runs a snippet in the console session, creating it on first use,
// and renders the result.
func (r *Runtime) Eval(code string) (string, error) {
	s, ok := r.Get(ConsoleScript)
	if !ok {
		var err error
		if s, err = r.openConsole(); err != nil {
			return "", err
		}
	}

	var (
		out     string
		evalErr error
	)
	err := s.call(func() {
		v, err := s.interp.Eval(code)
		if err != nil {
			evalErr = err
			return
		}
		if v.IsValid() && v.CanInterface() {
			out = fmt.Sprint(v.Interface())
		}
	})
	if err == nil {
		err = evalErr
	}
	if err != nil {
		return "", fmt.Errorf("console: %w", err)
	}
	return out, nil
}

func (r *Runtime) openConsole() (*Script, error) {
	session := r.bridge.NewSession(ConsoleScript)
	s := &Script{name: ConsoleScript, session: session}
	s.interp = r.newInterpreter(session)
	if _, err := s.interp.Eval(`import "modbridge"`); err != nil {
		session.Close()
		return nil, fmt.Errorf("console: %w", err)
	}
	r.mu.Lock()
	r.scripts[ConsoleScript] = s
	r.mu.Unlock()
	return s, nil
}

// Close unloads every script.
func (r *Runtime) Close() {
	for _, n := range r.Names() {
		r.Unload(n)
	}
}
