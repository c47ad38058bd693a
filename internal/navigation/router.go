// Package navigation records which view the client is showing and lets
// workflows redirect it (to login on auth failure, to the portfolio after a
// completed order).
package navigation

import (
	"fmt"
	"strings"
	"sync"
)

type View string

const (
	Login      View = "login"
	Dashboard  View = "dashboard"
	Portfolio  View = "portfolio"
	Simulation View = "simulation"
)

var views = []View{Login, Dashboard, Portfolio, Simulation}

// ParseView accepts a view name case-insensitively.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Router is safe for concurrent use. OnNavigate, when set, is called after
// each change with the previous and new view, outside the lock.
type Router struct {
	mu         sync.RWMutex
	current    View
	OnNavigate func(from, to View)
}

func NewRouter(initial View) *Router {
	if initial == "" {
		initial = Login
	}
	return &Router{current: initial}
}

func (r *Router) Current() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Navigate switches the current view. Navigating to the current view is a no-op.
func (r *Router) Navigate(to View) {
	r.mu.Lock()
	from := r.current
	if from == to {
		r.mu.Unlock()
		return
	}
	r.current = to
	hook := r.OnNavigate
	r.mu.Unlock()

	if hook != nil {
		hook(from, to)
	}
}
