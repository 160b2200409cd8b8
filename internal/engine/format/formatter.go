// Package format renders trade records and response plans as the Vietnamese
// Markdown replies shown to the user, applying the tiered disclosure policy.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"trade-assistant/internal/common/config"
	"trade-assistant/internal/models"
)

const recordSeparator = "\n\n---\n\n"

// Formatter applies the disclosure policy while rendering records.
type Formatter struct {
	tierLimits        map[string]int
	unknownTierPolicy string
}

func New(cfg config.EngineConfig) *Formatter {
	return &Formatter{
		tierLimits:        cfg.TierLimits,
		unknownTierPolicy: cfg.UnknownTierPolicy,
	}
}

// limitFor resolves the record cap for a caller tier. Unknown tiers follow
// the configured policy: permissive renders everything, strict applies the
// smallest configured cap.
func (f *Formatter) limitFor(tier string, total int) int {
	if limit, ok := f.tierLimits[tier]; ok {
		return limit
	}
	if f.unknownTierPolicy == "strict" {
		smallest := 0
		for _, limit := range f.tierLimits {
			if smallest == 0 || limit < smallest {
				smallest = limit
			}
		}
		if smallest > 0 {
			return smallest
		}
	}
	return total
}

// FormatRecords renders records separated by a horizontal rule, capped per
// the caller's tier.
func (f *Formatter) FormatRecords(records []models.TradeRecord, displayDate bool, tier string) string {
	limit := f.limitFor(tier, len(records))
	if limit > len(records) {
		limit = len(records)
	}

	parts := make([]string, 0, limit)
	for _, r := range records[:limit] {
		parts = append(parts, FormatRecord(r, displayDate))
	}
	return strings.Join(parts, recordSeparator)
}

// FormatRecord renders one record as Markdown. Import records show the
// supplier but never quantity; export records hide the supplier entirely;
// records with an unknown direction show both supplier and quantity.
func FormatRecord(r models.TradeRecord, displayDate bool) string {
	var lines []string

	if displayDate {
		if r.Date != nil {
			lines = append(lines, fmt.Sprintf("**Ngày:** %s", r.Date.Format("2006-01-02")))
		} else {
			lines = append(lines, "**Ngày:** không có thông tin về ngày")
		}
	}

	lines = append(lines, "- **Tên hàng:** "+cleanField(r.ProductName, "tên hàng"))
	lines = append(lines, "- **Mã HS:** "+cleanField(r.HSCode, "mã HS"))
	if r.Direction != models.DirectionExport {
		lines = append(lines, "- **Nhà cung cấp:** "+cleanField(r.Supplier, "nhà cung cấp"))
	}
	lines = append(lines, "- **Trạng thái:** "+directionLabel(r.Direction))
	lines = append(lines, "- **Nước xuất xứ:** "+cleanField(r.Origin, "nước xuất xứ"))
	lines = append(lines, "- **Điều kiện giao hàng:** "+cleanField(r.DeliveryTerm, "điều kiện giao hàng"))
	lines = append(lines, fmt.Sprintf(
		"- **Thuế suất XNK:** %s; **TTĐB:** %s; **VAT:** %s; **Thuế suất tự vệ:** %s; **BVMT:** %s",
		formatTax(r.TaxImportExport),
		formatTax(r.TaxSpecialConsumption),
		formatTax(r.TaxVAT),
		formatTax(r.TaxSafeguard),
		formatEnvTax(r.TaxEnvironment),
	))
	if r.Direction == models.DirectionUnknown {
		lines = append(lines, fmt.Sprintf(
			"- **Số lượng:** %s %s",
			formatQuantity(r.Quantity),
			cleanField(r.Unit, "đơn vị tính"),
		))
	}

	return strings.Join(lines, "\n")
}

func cleanField(value, fieldName string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "không có thông tin về " + fieldName
	}
	return value
}

func directionLabel(d models.Direction) string {
	switch d {
	case models.DirectionImport:
		return "nhập"
	case models.DirectionExport:
		return "xuất"
	default:
		return "không có thông tin về tình trạng"
	}
}

// formatTax renders a tax rate as a percentage; negative or absent rates mean
// the tax does not apply (KCT).
func formatTax(rate *float64) string {
	if rate == nil || *rate < 0 {
		return "KCT"
	}
	return fmt.Sprintf("%.2f%%", *rate)
}

// formatEnvTax is binary: the environment tax either applies (CT) or not.
func formatEnvTax(rate *float64) string {
	if rate == nil || *rate < 0 {
		return "KCT"
	}
	return "CT"
}

func formatQuantity(q *float64) string {
	if q == nil {
		return "không có thông tin về số lượng"
	}
	return strconv.FormatFloat(*q, 'f', -1, 64)
}
