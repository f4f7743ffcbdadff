package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moolen/primeline/internal/logging"
)

const defaultShutdownTimeout = 30 * time.Second

// Manager starts registered components in dependency order and stops them
// in reverse start order. A failed start rolls back everything already
// started; each stop gets its own timeout so one hung component cannot
// block the rest of shutdown.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	dependsOn       map[Component][]Component
	started         []Component // in start order
	running         map[Component]bool
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewManager creates a Manager with the default 30s per-component
// shutdown timeout.
func NewManager() *Manager {
	return &Manager{
		dependsOn:       make(map[Component][]Component),
		running:         make(map[Component]bool),
		shutdownTimeout: defaultShutdownTimeout,
		logger:          logging.GetLogger("lifecycle"),
	}
}

// Register adds a component. Dependencies must already be registered;
// duplicate registration and dependency cycles are rejected.
func (m *Manager) Register(component Component, deps ...Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if component == nil {
		return errors.New("cannot register nil component")
	}
	if component.Name() == "" {
		return errors.New("component must have a non-empty name")
	}
	if m.isRegistered(component) {
		return fmt.Errorf("component %s is already registered", component.Name())
	}
	for _, dep := range deps {
		if !m.isRegistered(dep) {
			return fmt.Errorf("dependency %s of %s is not registered", dep.Name(), component.Name())
		}
	}
	if m.reaches(component, deps) {
		return fmt.Errorf("registering %s would create a dependency cycle", component.Name())
	}

	m.components = append(m.components, component)
	m.dependsOn[component] = deps
	m.logger.Debug("Registered component %s (%d dependencies)", component.Name(), len(deps))
	return nil
}

func (m *Manager) isRegistered(c Component) bool {
	for _, existing := range m.components {
		if existing == c {
			return true
		}
	}
	return false
}

// reaches reports whether target is reachable by walking the dependency
// edges out of from.
func (m *Manager) reaches(target Component, from []Component) bool {
	seen := make(map[Component]bool)
	stack := append([]Component(nil), from...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c == target {
			return true
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		stack = append(stack, m.dependsOn[c]...)
	}
	return false
}

// Start brings up every component, dependencies first. On failure the
// already-started components are stopped in reverse order and the error
// is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = nil
	for _, component := range m.startOrder() {
		m.logger.Info("Starting %s", component.Name())
		begin := time.Now()

		if err := component.Start(ctx); err != nil {
			m.logger.Error("Failed to start %s: %v", component.Name(), err)
			m.rollback()
			return fmt.Errorf("failed to start %s: %w", component.Name(), err)
		}

		m.running[component] = true
		m.started = append(m.started, component)
		m.logger.Info("%s started (%dms)", component.Name(), time.Since(begin).Milliseconds())
	}

	m.logger.Info("All components started")
	return nil
}

// startOrder returns the components topologically sorted so that every
// component follows its dependencies.
func (m *Manager) startOrder() []Component {
	var order []Component
	visited := make(map[Component]bool)

	var visit func(Component)
	visit = func(c Component) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, dep := range m.dependsOn[c] {
			visit(dep)
		}
		order = append(order, c)
	}
	for _, c := range m.components {
		visit(c)
	}
	return order
}

// rollback stops components started during a failed Start, newest first,
// each with a short grace period.
func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		m.logger.Debug("Rolling back %s", component.Name())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := component.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping %s during rollback: %v", component.Name(), err)
		}
		cancel()
		m.running[component] = false
	}
	m.started = nil
}

// Stop shuts down the started components in reverse start order. Errors
// are logged but never abort the remaining stops; Stop always returns nil
// so shutdown proceeds to completion.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping all components")
	for i := len(m.started) - 1; i >= 0; i-- {
		component := m.started[i]
		if !m.running[component] {
			continue
		}

		m.logger.Info("Stopping %s", component.Name())
		begin := time.Now()

		stopCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := component.Stop(stopCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.logger.Warn("%s exceeded the %v grace period, abandoning", component.Name(), m.shutdownTimeout)
		case err != nil:
			m.logger.Error("Error stopping %s: %v", component.Name(), err)
		default:
			m.logger.Info("%s stopped (%dms)", component.Name(), time.Since(begin).Milliseconds())
		}
		m.running[component] = false
	}

	m.logger.Info("All components stopped")
	return nil
}

// IsRunning reports whether the component started and has not stopped.
func (m *Manager) IsRunning(component Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[component]
}

// SetShutdownTimeout overrides the per-component stop grace period.
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}
