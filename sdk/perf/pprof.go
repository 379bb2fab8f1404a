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

// Package perf 包住一段工作並寫出 pprof 檔（qrng bench --pprof cpu）。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/qrnglab/errs"
)

// Dir pprof 檔案寫入路徑
var Dir = "build/profiling"

// Modes 支援的 profile 種類
var Modes = []string{"cpu", "heap", "allocs", "mutex"}

// RunPProf 依 mode 執行 exe 並寫出對應的 profile；mode 為空字串時只執行 exe。
//
// 回傳的路徑是寫出的檔案，沒有寫檔時為空字串。
func RunPProf(exe func(), mode string) (string, error) {
	switch mode {
	case "":
		exe()
		return "", nil
	case "cpu":
		return PProfCPU(exe)
	case "heap":
		return PProfHeap(exe)
	case "allocs":
		return lookupAfter(exe, "allocs")
	case "mutex":
		// 觀察多個 worker 搶同一台裝置 / 熵源鎖的情形
		prev := runtime.SetMutexProfileFraction(1)
		defer runtime.SetMutexProfileFraction(prev)
		return lookupAfter(exe, "mutex")
	default:
		return "", errs.InvalidArgument("unknown pprof mode %q: want one of %v", mode, Modes)
	}
}

func create(name string) (*os.File, string, error) {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return nil, "", errs.Wrap(err, "create profiling dir")
	}
	path := filepath.Join(Dir, name+".pprof")
	f, err := os.Create(path)
	if err != nil {
		return nil, "", errs.Wrap(err, "create "+path)
	}
	return f, path, nil
}

// PProfCPU 在 exe 執行期間做 CPU profiling，也可拿來當 pgo 的 default.pgo。
func PProfCPU(exe func()) (string, error) {
	f, path, err := create("cpu")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return "", errs.Wrap(err, "start cpu profile")
	}
	exe()
	pprof.StopCPUProfile()
	return path, nil
}

// PProfHeap 在 exe 結束後寫出一次 heap 快照（in-use memory）。
// 寫之前先 GC，讓快照貼近 live objects。
func PProfHeap(exe func()) (string, error) {
	exe()
	runtime.GC()
	f, path, err := create("heap")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return "", errs.Wrap(err, "write heap profile")
	}
	return path, nil
}

// lookupAfter exe 結束後寫出 runtime 內建的具名 profile（allocs、mutex）
func lookupAfter(exe func(), name string) (string, error) {
	exe()
	prof := pprof.Lookup(name)
	if prof == nil {
		return "", errs.NewFatal("no runtime profile named " + name)
	}
	f, path, err := create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return "", errs.Wrap(err, "write "+name+" profile")
	}
	return path, nil
}
