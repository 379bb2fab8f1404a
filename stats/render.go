package stats

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/zintix-labs/qrnglab/errs"
	"gopkg.in/yaml.v3"
)

// ReportRender 定義輸出行為
type ReportRender interface {
	Write(w io.Writer, r *Report) error
}

// Json渲染
type JsonReportRender struct{}

func (jr *JsonReportRender) Write(w io.Writer, r *Report) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLReportRender struct{}

func (yr *YAMLReportRender) Write(w io.Writer, r *Report) error {
	// 只有「最內層的一維陣列」輸出成 flow style：[..., ...]，外層維持展開
	return forceReadableList(w, r)
}

// RenderByName 依名稱取得渲染器：json | yaml。
func RenderByName(name string) (ReportRender, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return &JsonReportRender{}, nil
	case "yaml", "yml":
		return &YAMLReportRender{}, nil
	default:
		return nil, errs.InvalidArgument("unknown report format %q: want json|yaml", name)
	}
}

// YAML 內層方法
func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}

	// 自頂向下調整所有 sequence node 的 style：
	// - 內部沒有子 sequence 的最內層一維 => flow style: [...]
	// - 有子 sequence 的外層維度 => 保持預設 block（展開）
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
		return

	case yaml.SequenceNode:
		hasChildSeq := false
		for _, c := range n.Content {
			if c != nil && (c.Kind == yaml.SequenceNode || c.Kind == yaml.MappingNode) {
				hasChildSeq = true
				break
			}
		}
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
		return

	default:
		return
	}
}
