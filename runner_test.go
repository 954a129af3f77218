package ffsys

import (
	"context"
	"fmt"
	"sync"
)

// fakeRunner records commands and answers them from a table keyed by the
// command name.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []Command
	results map[string]fakeResult
	// hook runs before the result is returned.
	hook func(Command) error
}

type fakeResult struct {
	out Output
	err error
}

func (f *fakeRunner) Run(_ context.Context, c Command) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	if f.hook != nil {
		if err := f.hook(c); err != nil {
			return Output{}, err
		}
	}
	key := c.Name
	if len(c.Args) > 0 && c.Name == "make" {
		key = fmt.Sprintf("make %s", c.Args[0])
	}
	r, ok := f.results[key]
	if !ok {
		return Output{}, nil
	}
	return r.out, r.err
}

func (f *fakeRunner) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.calls {
		names = append(names, c.String())
	}
	return names
}
