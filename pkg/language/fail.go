package language

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shaneholloman/prek/pkg/config"
)

// failBackend prints the hook's entry and fails for every matched file; it
// exists to forbid files by pattern.
type failBackend struct{}

func newFailBackend() *failBackend { return &failBackend{} }

func (b *failBackend) Name() string   { return "fail" }
func (b *failBackend) NeedsEnv() bool { return false }

func (b *failBackend) Discover(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return &Toolchain{Language: "fail"}, nil
}

func (b *failBackend) Install(_ context.Context, _ VersionRequest) (*Toolchain, error) {
	return nil, ErrNoDownload
}

func (b *failBackend) ProvisionEnv(_ context.Context, _, _ string, _ config.Hook, _ *Toolchain) error {
	return nil
}

func (b *failBackend) HealthCheck(_ context.Context, _ *Env) bool { return true }

func (b *failBackend) BuildCommand(_ *Env, hook config.Hook, _ []string) (Command, error) {
	return Command{Argv: []string{hook.Entry}, Env: map[string]string{}}, nil
}

// RunNative implements the in-process dispatch path.
func (b *failBackend) RunNative(hook config.Hook, _ string, files []string) (int, []byte) {
	var out bytes.Buffer
	fmt.Fprintln(&out, hook.Entry)
	for _, f := range files {
		fmt.Fprintln(&out, f)
	}
	return 1, out.Bytes()
}
