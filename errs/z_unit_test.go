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

package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindMatching(t *testing.T) {
	su := SourceUnavailable("backend down", nil)
	if !errors.Is(su, ErrSourceUnavailable) {
		t.Fatalf("expected SourceUnavailable match")
	}
	if errors.Is(su, ErrInvalidRange) {
		t.Fatalf("unexpected InvalidRange match")
	}

	empty := EmptyResult("zero counts")
	if !errors.Is(empty, ErrEmptyResult) {
		t.Fatalf("expected EmptyResult match")
	}
	if !errors.Is(empty, ErrSourceUnavailable) {
		t.Fatalf("EmptyResult must also match SourceUnavailable")
	}
	if errors.Is(su, ErrEmptyResult) {
		t.Fatalf("SourceUnavailable must not match EmptyResult")
	}
}

func TestWrapKeepsKindAndLevel(t *testing.T) {
	base := InvalidRange("max %d < min %d", 5, 10)
	w := Wrap(base, "sample int")
	if w.Kind != KindInvalidRange || w.ErrLv != Warn {
		t.Fatalf("wrap lost classification: kind=%v lv=%v", w.Kind, w.ErrLv)
	}
	outer := fmt.Errorf("handler: %w", w)
	if !errors.Is(outer, ErrInvalidRange) {
		t.Fatalf("errors.Is should see through fmt wrapping")
	}
	if KindOf(outer) != KindInvalidRange {
		t.Fatalf("KindOf mismatch: %v", KindOf(outer))
	}

	plain := Wrap(errors.New("io"), "read")
	if plain.ErrLv != Fatal || plain.Kind != KindNone {
		t.Fatalf("foreign cause should be fatal/unclassified")
	}
}

func TestErrorString(t *testing.T) {
	e := WrapWithExtra(SourceUnavailable("no data", errors.New("timeout")), "sample bit", "shots=10000")
	s := e.Error()
	for _, want := range []string{"errlv=fatal", "kind=source_unavailable", "sample bit", "shots=10000", "timeout"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %q", want, s)
		}
	}
	if KindOf(errors.New("x")) != KindNone {
		t.Fatalf("foreign error should have no kind")
	}
}
