package format

import (
	"fmt"
	"strings"

	"trade-assistant/internal/engine/planner"
)

// QueryContext carries the turn-level values the plan texts reference.
type QueryContext struct {
	Code     string
	Supplier string
	Tier     string
}

// RenderPlan turns a response plan into the final user-facing Markdown.
func (f *Formatter) RenderPlan(plan planner.Plan, qctx QueryContext) string {
	switch plan.Kind {
	case planner.KindEmpty:
		return renderEmpty(plan, qctx)
	case planner.KindDisambiguation:
		return renderDisambiguation(plan)
	case planner.KindDetail:
		header := detailHeader(qctx)
		body := f.FormatRecords(plan.Records, true, qctx.Tier)
		if header == "" {
			return body
		}
		return header + "\n\n" + body
	case planner.KindSummary:
		return renderSummary(plan, qctx)
	default:
		return ""
	}
}

func renderEmpty(plan planner.Plan, qctx QueryContext) string {
	switch plan.Dimension {
	case "code":
		return fmt.Sprintf("Không tìm thấy HS code nào khớp với: '**%s**'.", qctx.Code)
	case "supplier":
		return fmt.Sprintf("Không tìm thấy nhà cung cấp nào khớp với: '**%s**'.", qctx.Supplier)
	default:
		return "Không tìm thấy dữ liệu phù hợp với yêu cầu."
	}
}

func renderDisambiguation(plan planner.Plan) string {
	var lines []string
	switch plan.Dimension {
	case "supplier":
		lines = append(lines, "Tìm thấy nhiều nhà cung cấp khớp với tên yêu cầu:\n")
	default:
		lines = append(lines, "Tìm thấy nhiều HS code khớp với yêu cầu:\n")
	}
	for _, c := range plan.Candidates {
		lines = append(lines, "- "+c)
	}
	switch plan.Dimension {
	case "supplier":
		lines = append(lines, "\nVui lòng chọn 1 nhà cung cấp chính xác.")
	default:
		lines = append(lines, "\nVui lòng chọn 1 HS code chính xác.")
	}
	return strings.Join(lines, "\n")
}

func detailHeader(qctx QueryContext) string {
	if qctx.Code == "" {
		return ""
	}
	return fmt.Sprintf("Dưới đây là thông tin liên quan đến HS code **%s**:", qctx.Code)
}

func renderSummary(plan planner.Plan, qctx QueryContext) string {
	var lines []string
	if qctx.Code != "" {
		lines = append(lines, fmt.Sprintf("**Tôi tìm thấy %d bản ghi cho mã HS %s.**\n", plan.Total, qctx.Code))
	} else {
		lines = append(lines, fmt.Sprintf("**Tôi tìm thấy %d bản ghi phù hợp với yêu cầu.**\n", plan.Total))
	}
	lines = append(lines, "Dưới đây là danh sách nhà cung cấp theo từng ngày:\n")

	for _, g := range plan.Groups {
		lines = append(lines, fmt.Sprintf("Ngày %s:", g.Date.Format("2006-01-02")))
		for _, s := range g.Suppliers {
			lines = append(lines, "- "+s)
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"Xin vui lòng chỉ định bạn muốn xem thông tin chi tiết về ngày nào hoặc nhà cung cấp nào.  \n"+
			"Nhập theo mẫu: **mã HS '...', nhà cung cấp '...'** hoặc  **mã HS '...', ngày 'YYYY-MM-DD'**. \n")

	return strings.Join(lines, "\n")
}
