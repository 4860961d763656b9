package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/geox/judge/internal/logging"
)

// DefaultShutdownTimeout is the per-component stop deadline.
const DefaultShutdownTimeout = 30 * time.Second

// Manager starts registered components after their dependencies and stops
// them in reverse start order.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	dependsOn       map[Component][]Component
	started         []Component
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		dependsOn:       make(map[Component][]Component),
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register adds component. Every dependency must already be registered,
// which also rules out cycles.
func (m *Manager) Register(component Component, dependsOn ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return errors.New("cannot register nil component")
	}
	if component.Name() == "" {
		return errors.New("component must have a non-empty name")
	}
	if slices.Contains(m.components, component) {
		return fmt.Errorf("component %s is already registered", component.Name())
	}
	for _, dep := range dependsOn {
		if !slices.Contains(m.components, dep) {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), component.Name())
		}
	}

	m.components = append(m.components, component)
	m.dependsOn[component] = dependsOn
	m.logger.Debug("Registered %s with %d dependencies", component.Name(), len(dependsOn))
	return nil
}

// Start starts every component in dependency order. On failure the
// components already started are stopped again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = m.started[:0]
	for _, component := range m.order() {
		begin := time.Now()
		if err := component.Start(ctx); err != nil {
			m.logger.Error("Failed to start %s: %v", component.Name(), err)
			m.stopStarted(context.Background())
			return fmt.Errorf("start %s: %w", component.Name(), err)
		}
		m.started = append(m.started, component)
		m.logger.Info("%s started (took %dms)", component.Name(), time.Since(begin).Milliseconds())
	}
	return nil
}

// Stop stops started components in reverse order. Stop errors are logged
// and joined into the result.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStarted(ctx)
}

// SetShutdownTimeout overrides DefaultShutdownTimeout.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}

// Running reports whether component is started.
func (m *Manager) Running(component Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.started, component)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		stopCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(stopCtx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s exceeded its %s shutdown deadline", component.Name(), m.shutdownTimeout)
			errs = append(errs, fmt.Errorf("stop %s: %w", component.Name(), err))
		case err != nil:
			m.logger.Error("Error stopping %s: %v", component.Name(), err)
			errs = append(errs, fmt.Errorf("stop %s: %w", component.Name(), err))
		default:
			m.logger.Info("%s stopped", component.Name())
		}
	}
	m.started = m.started[:0]
	return errors.Join(errs...)
}

// order returns components with dependencies first, keeping registration
// order otherwise.
func (m *Manager) order() []Component {
	visited := make(map[Component]bool, len(m.components))
	sorted := make([]Component, 0, len(m.components))
	var visit func(Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependsOn[c] {
			visit(dep)
		}
		sorted = append(sorted, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return sorted
}
