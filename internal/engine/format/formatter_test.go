package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-assistant/internal/common/config"
	"trade-assistant/internal/engine/planner"
	"trade-assistant/internal/models"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DetailThreshold:   20,
		TierLimits:        map[string]int{"max": 5, "vip": 2, "trial": 2},
		UnknownTierPolicy: "permissive",
	}
}

func floatPtr(f float64) *float64 { return &f }

func sampleRecord(direction models.Direction) models.TradeRecord {
	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return models.TradeRecord{
		Date:            &d,
		Supplier:        "ACME TRADING CO",
		HSCode:          "8471.30",
		ProductName:     "Laptop",
		Direction:       direction,
		Unit:            "chiếc",
		Quantity:        floatPtr(120),
		Origin:          "CN",
		DeliveryTerm:    "FOB",
		TaxImportExport: floatPtr(10),
		TaxVAT:          floatPtr(8),
		TaxEnvironment:  floatPtr(0),
	}
}

func TestFormatRecordImportShowsSupplierHidesQuantity(t *testing.T) {
	out := FormatRecord(sampleRecord(models.DirectionImport), true)

	assert.Contains(t, out, "**Ngày:** 2024-03-15")
	assert.Contains(t, out, "**Nhà cung cấp:** ACME TRADING CO")
	assert.Contains(t, out, "**Trạng thái:** nhập")
	assert.NotContains(t, out, "Số lượng")
}

func TestFormatRecordExportHidesSupplierAndQuantity(t *testing.T) {
	out := FormatRecord(sampleRecord(models.DirectionExport), true)

	assert.NotContains(t, out, "Nhà cung cấp")
	assert.NotContains(t, out, "ACME TRADING CO")
	assert.NotContains(t, out, "Số lượng")
	assert.Contains(t, out, "**Trạng thái:** xuất")
}

func TestFormatRecordUnknownDirectionShowsEverything(t *testing.T) {
	out := FormatRecord(sampleRecord(models.DirectionUnknown), true)

	assert.Contains(t, out, "**Nhà cung cấp:** ACME TRADING CO")
	assert.Contains(t, out, "**Số lượng:** 120 chiếc")
	assert.Contains(t, out, "**Trạng thái:** không có thông tin về tình trạng")
}

func TestFormatRecordTaxLine(t *testing.T) {
	r := sampleRecord(models.DirectionImport)
	r.TaxSafeguard = floatPtr(-1)

	out := FormatRecord(r, true)
	assert.Contains(t, out,
		"**Thuế suất XNK:** 10.00%; **TTĐB:** KCT; **VAT:** 8.00%; **Thuế suất tự vệ:** KCT; **BVMT:** CT")
}

func TestFormatRecordEnvTaxAbsent(t *testing.T) {
	r := sampleRecord(models.DirectionImport)
	r.TaxEnvironment = nil

	out := FormatRecord(r, true)
	assert.Contains(t, out, "**BVMT:** KCT")
}

func TestFormatRecordMissingFields(t *testing.T) {
	out := FormatRecord(models.TradeRecord{Direction: models.DirectionImport}, true)

	assert.Contains(t, out, "**Ngày:** không có thông tin về ngày")
	assert.Contains(t, out, "**Tên hàng:** không có thông tin về tên hàng")
	assert.Contains(t, out, "**Nhà cung cấp:** không có thông tin về nhà cung cấp")
}

func TestFormatRecordWithoutDate(t *testing.T) {
	out := FormatRecord(sampleRecord(models.DirectionImport), false)
	assert.NotContains(t, out, "Ngày")
}

func TestFormatRecordsAppliesTierCaps(t *testing.T) {
	f := New(testEngineConfig())

	records := make([]models.TradeRecord, 8)
	for i := range records {
		records[i] = sampleRecord(models.DirectionImport)
	}

	maxOut := f.FormatRecords(records, true, "max")
	assert.Equal(t, 5, strings.Count(maxOut, "**Tên hàng:**"))

	trialOut := f.FormatRecords(records, true, "trial")
	assert.Equal(t, 2, strings.Count(trialOut, "**Tên hàng:**"))

	vipOut := f.FormatRecords(records, true, "vip")
	assert.Equal(t, 2, strings.Count(vipOut, "**Tên hàng:**"))
}

func TestFormatRecordsUnknownTierPermissive(t *testing.T) {
	f := New(testEngineConfig())

	records := make([]models.TradeRecord, 8)
	for i := range records {
		records[i] = sampleRecord(models.DirectionImport)
	}

	out := f.FormatRecords(records, true, "something_else")
	assert.Equal(t, 8, strings.Count(out, "**Tên hàng:**"))
}

func TestFormatRecordsUnknownTierStrict(t *testing.T) {
	cfg := testEngineConfig()
	cfg.UnknownTierPolicy = "strict"
	f := New(cfg)

	records := make([]models.TradeRecord, 8)
	for i := range records {
		records[i] = sampleRecord(models.DirectionImport)
	}

	out := f.FormatRecords(records, true, "something_else")
	assert.Equal(t, 2, strings.Count(out, "**Tên hàng:**"))
}

func TestFormatRecordsSeparator(t *testing.T) {
	f := New(testEngineConfig())

	records := []models.TradeRecord{
		sampleRecord(models.DirectionImport),
		sampleRecord(models.DirectionImport),
	}
	out := f.FormatRecords(records, true, "max")
	assert.Equal(t, 1, strings.Count(out, "\n\n---\n\n"))
}

func TestRenderPlanEmptyByDimension(t *testing.T) {
	f := New(testEngineConfig())

	codeEmpty := f.RenderPlan(planner.Plan{Kind: planner.KindEmpty, Dimension: "code"},
		QueryContext{Code: "9999"})
	assert.Equal(t, "Không tìm thấy HS code nào khớp với: '**9999**'.", codeEmpty)

	supplierEmpty := f.RenderPlan(planner.Plan{Kind: planner.KindEmpty, Dimension: "supplier"},
		QueryContext{Supplier: "nosuch"})
	assert.Equal(t, "Không tìm thấy nhà cung cấp nào khớp với: '**nosuch**'.", supplierEmpty)

	noRows := f.RenderPlan(planner.Plan{Kind: planner.KindEmpty}, QueryContext{})
	assert.Equal(t, "Không tìm thấy dữ liệu phù hợp với yêu cầu.", noRows)
}

func TestRenderPlanDisambiguation(t *testing.T) {
	f := New(testEngineConfig())

	out := f.RenderPlan(planner.Plan{
		Kind:       planner.KindDisambiguation,
		Dimension:  "code",
		Candidates: []string{"7019.90", "7019.12"},
	}, QueryContext{Code: "7019"})

	assert.Contains(t, out, "Tìm thấy nhiều HS code khớp với yêu cầu:")
	assert.Contains(t, out, "- 7019.90")
	assert.Contains(t, out, "- 7019.12")
	assert.Contains(t, out, "Vui lòng chọn 1 HS code chính xác.")
}

func TestRenderPlanDetail(t *testing.T) {
	f := New(testEngineConfig())

	out := f.RenderPlan(planner.Plan{
		Kind:    planner.KindDetail,
		Records: []models.TradeRecord{sampleRecord(models.DirectionImport)},
	}, QueryContext{Code: "8471.30", Tier: "max"})

	assert.Contains(t, out, "Dưới đây là thông tin liên quan đến HS code **8471.30**:")
	assert.Contains(t, out, "**Tên hàng:** Laptop")
}

func TestRenderPlanSummary(t *testing.T) {
	f := New(testEngineConfig())

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := f.RenderPlan(planner.Plan{
		Kind:   planner.KindSummary,
		Total:  42,
		Groups: []planner.DateGroup{{Date: d, Suppliers: []string{"ACME TRADING CO", "GLOBEX VN"}}},
	}, QueryContext{Code: "8471.30"})

	assert.Contains(t, out, "**Tôi tìm thấy 42 bản ghi cho mã HS 8471.30.**")
	assert.Contains(t, out, "Ngày 2024-03-15:")
	assert.Contains(t, out, "- ACME TRADING CO")
	assert.Contains(t, out, "- GLOBEX VN")
	assert.Contains(t, out, "Xin vui lòng chỉ định")

	require.True(t, strings.Index(out, "ACME TRADING CO") < strings.Index(out, "GLOBEX VN"))
}

func TestRenderPlanSummaryWithoutCode(t *testing.T) {
	f := New(testEngineConfig())

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := f.RenderPlan(planner.Plan{
		Kind:   planner.KindSummary,
		Total:  42,
		Groups: []planner.DateGroup{{Date: d, Suppliers: []string{"ACME TRADING CO"}}},
	}, QueryContext{Supplier: "ACME TRADING CO"})

	assert.Contains(t, out, "**Tôi tìm thấy 42 bản ghi phù hợp với yêu cầu.**")
	assert.NotContains(t, out, "cho mã HS")
}
