package profiles

import (
	"embed"
)

// FS 內建的雜訊設定 YAML（almaden、depolarizing）。ideal 由 qsim 直接內建。
//
//go:embed *.yaml
var FS embed.FS
