// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zintix-labs/qrnglab/server/app"
)

type failing struct{ err error }

func (f failing) Run() error                     { return f.err }
func (f failing) Shutdown(context.Context) error { return nil }

func TestRunContextShutdownOrder(t *testing.T) {
	var order []string
	a := app.NewWith(
		app.OnShutdown(func() { order = append(order, "pool") }),
		app.OnShutdown(func() { order = append(order, "http") }),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.RunContext(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 2 || order[0] != "http" || order[1] != "pool" {
		t.Fatalf("shutdown must run in reverse order, got %v", order)
	}
}

func TestRunContextComponentError(t *testing.T) {
	boom := errors.New("listen failed")
	closed := false
	a := app.NewWith(app.OnShutdown(func() { closed = true }), failing{err: boom})
	if err := a.RunContext(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want component error, got %v", err)
	}
	if !closed {
		t.Fatalf("other components must be shut down")
	}
	if err := app.New().RunContext(context.Background()); err == nil {
		t.Fatalf("empty app must refuse to run")
	}
}
