package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// Confidence 報表使用的信賴水準
const Confidence = 0.95

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// Report 取樣品質報告
type Report struct {
	Summary    *SummaryReport    `json:"Summary"`
	Uniformity *UniformityReport `json:"Uniformity"`
	Bits       *BitReport        `json:"Bits"`
	Dist       *DistReport       `json:"Dist"`
	isDone     bool
}

type SummaryReport struct {
	Source       string  `json:"Source"`
	Min          int64   `json:"Min"`
	Max          int64   `json:"Max"`
	Samples      int     `json:"Samples"`
	Mean         float64 `json:"Mean"`
	MeanCI       CI      `json:"MeanCI"`
	ExpectedMean float64 `json:"ExpectedMean"`
	Std          float64 `json:"Std"`
	ExpectedStd  float64 `json:"ExpectedStd"`
	OutOfRange   int     `json:"OutOfRange"`
}

// UniformityReport 直方圖對均勻分布的 Pearson 卡方檢定
type UniformityReport struct {
	ChiSquare float64 `json:"ChiSquare"`
	DoF       int     `json:"DoF"`
	PValue    float64 `json:"PValue"`
}

// BitReport 以 offset = v - Min 的每個位元統計 1 的比例。
//
// 紀錄時只記 Ones，Done() 才依 span 算出期望值與 Clopper–Pearson 區間。
type BitReport struct {
	Width    int       `json:"Width"`
	Ones     []int     `json:"Ones"`
	Rate     []float64 `json:"Rate"`
	Expected []float64 `json:"Expected"`
	CI       []CI      `json:"CI"`
	Outside  []int     `json:"Outside"` // 期望值落在 CI 外的位元（LSB 為 0）
}

// DistReport 直方圖
type DistReport struct {
	Buckets  []string  `json:"Buckets"`
	Collect  []int     `json:"Collect"`
	Expected []float64 `json:"Expected"`

	layout *Buckets
}

// ============================================================
// ** 公開方法 **
// ============================================================

// NewReport 由紀錄員呼叫，帶入原始計數；衍生指標在 Done() 計算。
func NewReport(source string, b *Buckets, samples int, mean, m2 float64, collect, ones []int, outOfRange int) *Report {
	r := &Report{
		Summary: &SummaryReport{
			Source:     source,
			Min:        b.Min,
			Max:        int64(uint64(b.Min) + b.Span - 1),
			Samples:    samples,
			Mean:       mean,
			OutOfRange: outOfRange,
		},
		Uniformity: &UniformityReport{},
		Bits:       &BitReport{Width: len(ones), Ones: ones},
		Dist:       &DistReport{Collect: collect, layout: b},
	}
	if samples > 1 {
		r.Summary.Std = math.Sqrt(max(m2/float64(samples-1), 0))
	}
	return r
}

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
func (r *Report) Done() {
	if r.isDone {
		return
	}
	b := r.Dist.layout
	n := float64(r.Summary.Samples)
	span := b.SpanFloat()

	// Summary
	r.Summary.ExpectedMean = float64(r.Summary.Min)/2 + float64(r.Summary.Max)/2
	r.Summary.ExpectedStd = math.Sqrt((span*span - 1) / 12)
	r.Summary.MeanCI = meanCI(r.Summary.Mean, r.Summary.Std, r.Summary.Samples, Confidence)

	// Dist
	r.Dist.Buckets = b.Labels()
	r.Dist.Expected = make([]float64, b.Count)
	for i := range r.Dist.Expected {
		r.Dist.Expected[i] = n * b.Size(i) / span
	}

	// Uniformity
	r.Uniformity.DoF = b.Count - 1
	r.Uniformity.PValue = 1
	if r.Uniformity.DoF > 0 && r.Summary.Samples > 0 {
		obs := make([]float64, len(r.Dist.Collect))
		for i, c := range r.Dist.Collect {
			obs[i] = float64(c)
		}
		r.Uniformity.ChiSquare = stat.ChiSquare(obs, r.Dist.Expected)
		r.Uniformity.PValue = distuv.ChiSquared{K: float64(r.Uniformity.DoF)}.Survival(r.Uniformity.ChiSquare)
	}

	// Bits
	w := r.Bits.Width
	r.Bits.Rate = make([]float64, w)
	r.Bits.Expected = make([]float64, w)
	r.Bits.CI = make([]CI, w)
	r.Bits.Outside = r.Bits.Outside[:0]
	for k := 0; k < w; k++ {
		r.Bits.Rate[k], r.Bits.CI[k] = proportionCICP(r.Bits.Ones[k], r.Summary.Samples, Confidence)
		r.Bits.Expected[k] = b.ExpectedOnes(k)
		if exp := r.Bits.Expected[k]; r.Summary.Samples > 0 && (exp < r.Bits.CI[k].Lo || exp > r.Bits.CI[k].Hi) {
			r.Bits.Outside = append(r.Bits.Outside, k)
		}
	}

	r.isDone = true
}

// Uniform p 值不低於 alpha 且沒有超出範圍的取樣
func (r *Report) Uniform(alpha float64) bool {
	r.Done()
	return r.Summary.OutOfRange == 0 && r.Uniformity.PValue >= alpha
}

func (r *Report) WriteWith(w io.Writer, rep ReportRender) error {
	r.Done()
	return rep.Write(w, r)
}

// StdOut 以表格輸出到 w，ut 為取樣用時
func (r *Report) StdOut(w io.Writer, ut time.Duration) {
	r.Done()
	fmt.Fprint(w, formatDuration(ut, r.Summary.Samples))
	sk, sm := r.fmtBasic()
	fmt.Fprintln(w, fmtTable(r.Summary.Source, sk, sm))
	bk, bm := r.fmtBits()
	if len(bk) > 0 {
		fmt.Fprintln(w, fmtTable("Bit Bias (offset, LSB=0)", bk, bm))
	}
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, samples int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	sps := int(float64(samples) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nsps : %d samples/sec\n", sec, sps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nsps : %d samples/sec\n", m, s, sps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nsps : %d samples/sec\n", h, m, s, sps)
}

func (r *Report) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Range":         p.Sprintf("[%d, %d]", r.Summary.Min, r.Summary.Max),
		"Samples":       p.Sprintf("%d", r.Summary.Samples),
		"Mean":          p.Sprintf("%.4f", r.Summary.Mean),
		"Mean 95% CI":   p.Sprintf("[%.4f, %.4f]", r.Summary.MeanCI.Lo, r.Summary.MeanCI.Hi),
		"Expected Mean": p.Sprintf("%.4f", r.Summary.ExpectedMean),
		"STD":           p.Sprintf("%.4f", r.Summary.Std),
		"Expected STD":  p.Sprintf("%.4f", r.Summary.ExpectedStd),
		"Buckets":       p.Sprintf("%d", len(r.Dist.Collect)),
		"Chi-Square":    p.Sprintf("%.3f (dof %d)", r.Uniformity.ChiSquare, r.Uniformity.DoF),
		"p-value":       p.Sprintf("%.4f", r.Uniformity.PValue),
		"Out Of Range":  p.Sprintf("%d", r.Summary.OutOfRange),
	}
	keys := []string{"Range", "Samples", "Mean", "Mean 95% CI", "Expected Mean", "STD", "Expected STD", "Buckets", "Chi-Square", "p-value", "Out Of Range"}
	return keys, basic
}

func (r *Report) fmtBits() ([]string, map[string]string) {
	keys := make([]string, 0, r.Bits.Width)
	msg := make(map[string]string, r.Bits.Width)
	for k := 0; k < r.Bits.Width; k++ {
		key := fmt.Sprintf("bit %d", k)
		keys = append(keys, key)
		msg[key] = fmt.Sprintf("%s (exp %s)", fmtHatCIpct01(r.Bits.Rate[k], r.Bits.CI[k]), fmtPct01(r.Bits.Expected[k]))
	}
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
