// Package routing relays control messages hop by hop along static
// forwarding tables.
package routing

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// Errors of forwarding table use.
var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrDuplicateRule      = errors.New("forwarding rule already exists")
)

// A Rule maps a destination node to the next node on the way.
type Rule struct {
	Dst     string `json:"dst" yaml:"dst"`
	NextHop string `json:"next_hop" yaml:"next_hop"`
}

// Table is a forwarding table.
type Table interface {
	// NextHop returns the node to relay to for dst.
	NextHop(dst string) (string, error)

	// AddRule adds a rule. It fails if dst already has a rule.
	AddRule(dst, nextHop string) error

	// UpdateRule sets the rule of dst, replacing any existing one.
	UpdateRule(dst, nextHop string)

	// Rules returns all the rules, sorted by destination.
	Rules() []Rule
}

// NewTable creates an empty table.
func NewTable() Table {
	return &table{rules: make(map[string]string)}
}

type table struct {
	lock  sync.RWMutex
	rules map[string]string
}

func (t *table) NextHop(dst string) (string, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	next, ok := t.rules[dst]
	if !ok {
		return "", fmt.Errorf("%q: %w", dst, ErrUnknownDestination)
	}

	return next, nil
}

func (t *table) AddRule(dst, nextHop string) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if existing, ok := t.rules[dst]; ok {
		return fmt.Errorf("%q via %q: %w", dst, existing, ErrDuplicateRule)
	}

	t.rules[dst] = nextHop

	return nil
}

func (t *table) UpdateRule(dst, nextHop string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.rules[dst] = nextHop
}

func (t *table) Rules() []Rule {
	t.lock.RLock()
	defer t.lock.RUnlock()

	rules := make([]Rule, 0, len(t.rules))
	for dst, next := range t.rules {
		rules = append(rules, Rule{Dst: dst, NextHop: next})
	}

	slices.SortFunc(rules, func(a, b Rule) int {
		return strings.Compare(a.Dst, b.Dst)
	})

	return rules
}
