package fakes

import (
	"fmt"
	"sync"

	"github.com/bloombuilt/qb/internal/prompt"
)

// FakePrompter answers prompts from scripted queues.
//
// An exhausted queue answers with prompt.ErrNonInteractive, which is how
// the real prompter behaves without a terminal.
type FakePrompter struct {
	mu sync.Mutex

	Inputs    []string
	Passwords []string
	Selects   []string

	// Asked records every prompt title, in order
	Asked []string
}

func (f *FakePrompter) Input(title string) (string, error) {
	return f.next(title, &f.Inputs)
}

func (f *FakePrompter) Password(title string) (string, error) {
	return f.next(title, &f.Passwords)
}

func (f *FakePrompter) Select(title string, options []string) (string, error) {
	answer, err := f.next(title, &f.Selects)
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if o == answer {
			return answer, nil
		}
	}
	return "", fmt.Errorf("fake prompter: %q is not one of %v", answer, options)
}

func (f *FakePrompter) next(title string, queue *[]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Asked = append(f.Asked, title)
	if len(*queue) == 0 {
		return "", prompt.ErrNonInteractive
	}
	answer := (*queue)[0]
	*queue = (*queue)[1:]
	return answer, nil
}
