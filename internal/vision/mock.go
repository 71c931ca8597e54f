package vision

import (
	"context"
	"sync"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/reconcile"
	"github.com/ayusman/kinelabel/internal/trajectory"
)

// MockClassifier is a test implementation of reconcile.Classifier.
// It allows tests to control the verdict and inspect the calls.
type MockClassifier struct {
	mu          sync.Mutex
	verdict     reconcile.Verdict
	err         error
	calls       int
	window      *trajectory.Trajectory
	suggestions []action.Event
}

// NewMockClassifier creates a new MockClassifier instance.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// SetVerdict sets the verdict that will be returned by Classify.
func (m *MockClassifier) SetVerdict(v reconcile.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = v
}

// SetError sets the error that will be returned by Classify.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Classify records the call and returns the pre-configured verdict or error.
func (m *MockClassifier) Classify(_ context.Context, window *trajectory.Trajectory, suggestions []action.Event) (reconcile.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.window = window
	m.suggestions = suggestions
	if m.err != nil {
		return reconcile.Verdict{}, m.err
	}
	return m.verdict, nil
}

// Calls returns the number of Classify calls.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastWindow returns the window of the most recent call.
func (m *MockClassifier) LastWindow() *trajectory.Trajectory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window
}

// LastSuggestions returns the suggestions of the most recent call.
func (m *MockClassifier) LastSuggestions() []action.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suggestions
}
