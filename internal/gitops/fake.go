package gitops

import "fmt"

// FakeClient is an in-memory Client for tests. It records every call
// and simulates branch, stash and dirty-file state; individual
// operations can be forced to fail by name.
type FakeClient struct {
	Branch     string
	Branches   map[string]bool
	DirtyFiles []string
	Stash      int
	Calls      []string
	FailOn     map[string]error
}

// NewFakeClient creates a FakeClient checked out on branch
func NewFakeClient(branch string) *FakeClient {
	return &FakeClient{
		Branch:   branch,
		Branches: map[string]bool{branch: true},
		FailOn:   map[string]error{},
	}
}

// Fail makes the named operation return an error
func (f *FakeClient) Fail(op string) {
	f.FailOn[op] = fmt.Errorf("%s: forced failure", op)
}

func (f *FakeClient) record(op string, args ...string) error {
	call := op
	for _, a := range args {
		call += " " + a
	}
	f.Calls = append(f.Calls, call)
	return f.FailOn[op]
}

func (f *FakeClient) CurrentBranch() (string, error) {
	if err := f.record("current-branch"); err != nil {
		return "", err
	}
	return f.Branch, nil
}

func (f *FakeClient) Status() ([]string, error) {
	if err := f.record("status"); err != nil {
		return nil, err
	}
	return f.DirtyFiles, nil
}

func (f *FakeClient) Fetch(remote, branch string) error {
	return f.record("fetch", remote, branch)
}

func (f *FakeClient) ResetHard(ref string) error {
	return f.record("reset-hard", ref)
}

func (f *FakeClient) Checkout(branch string) error {
	if err := f.record("checkout", branch); err != nil {
		return err
	}
	if !f.Branches[branch] {
		return fmt.Errorf("checkout %s: no such branch", branch)
	}
	f.Branch = branch
	return nil
}

func (f *FakeClient) CheckoutNew(branch string) error {
	if err := f.record("checkout-new", branch); err != nil {
		return err
	}
	f.Branches[branch] = true
	f.Branch = branch
	return nil
}

func (f *FakeClient) StashPushAll(message string) error {
	if err := f.record("stash-push"); err != nil {
		return err
	}
	f.Stash++
	f.DirtyFiles = nil
	return nil
}

func (f *FakeClient) StashPop() error {
	if err := f.record("stash-pop"); err != nil {
		return err
	}
	if f.Stash == 0 {
		return fmt.Errorf("stash pop: no entries")
	}
	f.Stash--
	return nil
}

func (f *FakeClient) StashCount() (int, error) {
	if err := f.record("stash-count"); err != nil {
		return 0, err
	}
	return f.Stash, nil
}

func (f *FakeClient) Add(path string) error {
	return f.record("add", path)
}

func (f *FakeClient) Commit(message string) error {
	return f.record("commit", message)
}

func (f *FakeClient) Push(remote, branch string) error {
	return f.record("push", remote, branch)
}

func (f *FakeClient) Merge(branch string) error {
	return f.record("merge", branch)
}

func (f *FakeClient) DeleteBranch(branch string) error {
	if err := f.record("delete-branch", branch); err != nil {
		return err
	}
	if !f.Branches[branch] {
		return fmt.Errorf("delete %s: no such branch", branch)
	}
	delete(f.Branches, branch)
	return nil
}

func (f *FakeClient) DeleteRemoteBranch(remote, branch string) error {
	return f.record("delete-remote-branch", remote, branch)
}

// CalledOps returns just the operation names, in call order
func (f *FakeClient) CalledOps() []string {
	ops := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		ops[i] = c
		for j, r := range c {
			if r == ' ' {
				ops[i] = c[:j]
				break
			}
		}
	}
	return ops
}
