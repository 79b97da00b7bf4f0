package mapper

import (
	"strings"
	"testing"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMapRow_HaogangFull(t *testing.T) {
	s := schema.Haoganghui()
	cells := []string{"螺纹钢", "建材", "HRB400E", "Φ18", "-2.5/0.0199", "9m", "140", "5", "2.5", "3,650.00", "上海宝山物流园区仓库"}
	rec, skip := MapRow(cells, strings.Join(cells, " "), 3, s)
	require.Equal(t, SkipNone, skip)

	want := models.Record{
		"品名": "螺纹钢", "品类": "建材", "材质": "HRB400E", "规格": "Φ18",
		"负差": "2.5", "支重": "0.0199", "长度": "9m", "支/件": "140",
		"元/吨": "3650.00", "提货地": "园区仓库",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRow_HaogangLegacy(t *testing.T) {
	s := schema.Haoganghui()
	cells := []string{"线材", "建材", "HPB300", "Φ8", "+1", "", "", "", "", "3600"}
	rec, skip := MapRow(cells, strings.Join(cells, " "), 1, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "1", rec["负差"])
	require.Equal(t, "", rec["支重"])
	require.Equal(t, "", rec["提货地"])
	require.Equal(t, "3600", rec["元/吨"])
	require.Len(t, rec, len(s.Fields))
}

func TestMapRow_XinggangLayouts(t *testing.T) {
	s := schema.Xinggang91()

	full := []string{"工字钢", "Q235B", "20#", "-3-5", "20", "0.18", "56", "¥ 4,120", "津西库\n津西"}
	rec, skip := MapRow(full, strings.Join(full, " "), 2, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "~3~5", rec["负差"])
	require.Equal(t, "4120", rec["价格(元/吨)"])
	require.Equal(t, "津西", rec["品牌"])

	abbreviated := []string{"槽钢", "Q235B", "10#", "0-2", "30", "0.3", "12"}
	rec, skip = MapRow(abbreviated, "槽钢 Q235B 10# 0-2 30 0.3 12 磅计 3,980", 2, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "3980", rec["价格(元/吨)"])
	require.Equal(t, "", rec["品牌"])

	tokens := []string{"角钢 Q235B 50*5 0-3 40 0.2 3900"}
	rec, skip = MapRow(tokens, tokens[0], 2, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "角钢", rec["品名"])
	require.Equal(t, "0.2", rec["支重(吨)"])
	require.Equal(t, "3900", rec["价格(元/吨)"])
}

func TestMapRow_Skips(t *testing.T) {
	hg := schema.Haoganghui()
	xg := schema.Xinggang91()

	tests := []struct {
		name  string
		s     *schema.Schema
		cells []string
		text  string
		index int
		want  Skip
	}{
		{"empty text", hg, []string{"a"}, "   ", 1, SkipNoise},
		{"short text", hg, []string{"a"}, "螺纹钢 3800", 1, SkipNoise},
		{"few tokens", xg, []string{"a", "b"}, "螺纹钢 HRB400", 1, SkipNoise},
		{"header at zero", hg, []string{"品名"}, "品名 品类 材质 规格 负差", 0, SkipHeader},
		{"no cells", hg, nil, "螺纹钢 建材 HRB400E Φ18", 1, SkipNoCells},
		{"all empty", hg, make([]string, 11), "一二三四五六七八九十", 1, SkipInsignificant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, got := MapRow(tt.cells, tt.text, tt.index, tt.s)
			require.Equal(t, tt.want, got)
			require.Nil(t, rec)
		})
	}
}

func TestMapRow_HeaderOnlyAtIndexZero(t *testing.T) {
	s := schema.Haoganghui()
	cells := []string{"品名", "品类", "材质", "规格", "负差/支重", "长度", "支/件", "件数", "件重", "元/吨", "仓库"}
	text := strings.Join(cells, " ")

	_, skip := MapRow(cells, text, 0, s)
	require.Equal(t, SkipHeader, skip)

	rec, skip := MapRow(cells, text, 4, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "品名", rec["品名"])
}

func TestMapRow_NeverInsignificant(t *testing.T) {
	s := schema.Xinggang91()
	rows := [][]string{
		{"", "", "", "x", "y", "z", "w", "", ""},
		{"", "", "", "", "", "", ""},
		{"", "Q235", "", "", "", "", "", "", ""},
	}
	for _, cells := range rows {
		rec, skip := MapRow(cells, "noise tokens here and there", 1, s)
		if skip != SkipNone {
			continue
		}
		require.True(t, rec.AnyOf(s.Significant()...), "record %v", rec)
	}
}

func TestCompositeSplitIsLossless(t *testing.T) {
	s := schema.Haoganghui()
	cells := []string{"螺纹钢", "建材", "HRB400E", "Φ18", "3/0.02/extra", "9m", "1", "2", "3", "3600", "仓库"}
	rec, skip := MapRow(cells, strings.Join(cells, " "), 1, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "3", rec["负差"])
	require.Equal(t, "0.02/extra", rec["支重"])
}

func TestMapRow_CompositeReplace(t *testing.T) {
	s, err := schema.New(schema.Schema{
		Name:   "composite",
		Fields: []schema.Field{{Name: "品名", Role: schema.RoleName}, {Name: "负差"}, {Name: "支重"}},
		Layouts: []schema.Layout{{
			Name:     "full",
			MinCells: 2,
			Columns: []schema.Column{
				{Index: 0, Field: "品名"},
				{Index: 1, Field: "负差", Kind: schema.KindComposite, Secondary: "支重", Replace: []string{"-", "~", "，", "."}},
			},
		}},
		Patterns: schema.Patterns{Tables: []string{"table"}, Rows: []string{"tr"}, Cells: []string{"td"}},
	})
	require.NoError(t, err)

	rec, skip := MapRow([]string{"螺纹钢", "3-5/2，1"}, "螺纹钢 3-5/2，1", 1, s)
	require.Equal(t, SkipNone, skip)
	require.Equal(t, "3~5", rec["负差"])
	require.Equal(t, "2.1", rec["支重"])
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"number grouped", Number("约 12,345.50 元"), "12345.50"},
		{"number none", Number("面议"), "面议"},
		{"origin newline", Origin("晋南厂库\n晋南"), "晋南"},
		{"origin slash", Origin("津西库/津西/河北"), "津西"},
		{"origin space", Origin("津西库 津西"), "津西"},
		{"origin plain", Origin("津西"), "津西"},
		{"tail long", Tail("上海宝山仓库", 4), "宝山仓库"},
		{"tail short", Tail("仓库", 4), "仓库"},
		{"digits", DigitsOnly("¥3,800.5元"), "3800.5"},
		{"digits empty", DigitsOnly("面议"), ""},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestSkipString(t *testing.T) {
	if SkipHeader.String() != "header" {
		t.Errorf("got %q", SkipHeader.String())
	}
}
