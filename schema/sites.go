package schema

// Defaults shared by the built-in sites.
const DefaultMinLineLen = 20

var (
	// DefaultLineKeywords gate which page-text lines may hold a listing.
	DefaultLineKeywords = []string{"螺纹钢", "线材", "热轧", "冷轧", "中厚板", "型钢", "钢管", "钢坯"}

	// DefaultNameKeywords mark a token as the product name.
	DefaultNameKeywords = []string{"螺纹钢", "线材", "圆钢", "角钢", "槽钢", "工字钢", "h型钢", "热轧", "冷轧", "中厚板"}

	// DefaultHeaderKeywords mark the header row.
	DefaultHeaderKeywords = []string{"品名", "材质", "规格", "价格", "库存", "表头", "标题"}
)

// Haoganghui is the cuohe listing of haoganghui.cn: an 11-column grid with a
// combined tolerance/weight cell and a long warehouse label.
func Haoganghui() *Schema {
	cols := []Column{
		{Index: 0, Field: "品名"},
		{Index: 1, Field: "品类"},
		{Index: 2, Field: "材质"},
		{Index: 3, Field: "规格"},
		{Index: 4, Field: "负差", Kind: KindComposite, Secondary: "支重", Delimiter: "/", StripSign: true},
		{Index: 5, Field: "长度"},
		{Index: 6, Field: "支/件"},
		// 7 件数 and 8 件重 are not kept.
		{Index: 9, Field: "元/吨"},
	}
	full := append(append([]Column(nil), cols...), Column{Index: 10, Field: "提货地", Kind: KindTail, Keep: 4})

	return MustNew(Schema{
		Name:     "haoganghui",
		Title:    "好钢汇",
		EntryURL: "https://www.haoganghui.cn/Main/cuohe_index",
		Fields: []Field{
			{Name: "品名", Role: RoleName},
			{Name: "品类", Role: RoleCategory},
			{Name: "材质", Role: RoleMaterial},
			{Name: "规格", Role: RoleSpec},
			{Name: "负差", Role: RoleTolerance},
			{Name: "支重", Role: RoleWeight},
			{Name: "长度", Role: RoleLength},
			{Name: "支/件", Role: RolePieces},
			{Name: "元/吨", Role: RolePrice},
			{Name: "提货地", Role: RoleWarehouse},
		},
		Layouts: []Layout{
			{Name: "full", MinCells: 11, Columns: full},
			{Name: "legacy", MinCells: 10, Columns: cols},
		},
		HeaderKeywords: DefaultHeaderKeywords,
		MinTextLen:     10,
		Patterns: Patterns{
			Tables: []string{
				"table",
				"div.table",
				"div.data-table",
				".table-container",
				".data-container",
				"[class*='table']",
				"[class*='data']",
				"#dataTable",
				"#tableData",
				"[role='grid']",
			},
			Rows: []string{
				"tr",
				"tbody tr",
				"table tr",
				".row",
				"[class*='row']",
				".data-row",
				"div.row",
			},
			FallbackRows: "tr, .row, [class*='row']",
			Cells:        []string{"td", "th", "div.cell", "span.cell", ".col", "[class*='col']"},
			Pagination:   []string{".pagination", ".page", "[class*='paging']", "[class*='page']", ".next", ".btn-next"},
			NextLinks:    "a",
			NextClasses:  []string{".next, .btn-next, [class*='next']"},
			Active:       []string{".current, .active, [class*='active']"},
			PageLinks:    "a",
			LastPage:     "a",
			Login:        "a, button, span, div.login, [class*='login']",
		},
	})
}

// Xinggang91 is the spot listing of 91xinggang: an Element-UI / Ant Design
// table whose last cell holds "warehouse\norigin".
func Xinggang91() *Schema {
	lead := []Column{
		{Index: 0, Field: "品名"},
		{Index: 1, Field: "材质"},
		{Index: 2, Field: "规格"},
		{Index: 3, Field: "负差", Replace: []string{"-", "~"}},
		{Index: 4, Field: "支/件"},
		{Index: 5, Field: "支重(吨)"},
		{Index: 6, Field: "可售量"},
	}
	full := append(append([]Column(nil), lead...),
		Column{Index: 7, Field: "价格(元/吨)", Kind: KindNumber},
		Column{Index: 8, Field: "品牌", Kind: KindOrigin},
	)

	return MustNew(Schema{
		Name:     "xinggang91",
		Title:    "91型钢",
		EntryURL: "https://www.91xinggang.com/#/matchMarket",
		Fields: []Field{
			{Name: "品名", Role: RoleName},
			{Name: "材质", Role: RoleMaterial},
			{Name: "规格", Role: RoleSpec},
			{Name: "负差", Role: RoleTolerance},
			{Name: "支/件", Role: RolePieces},
			{Name: "支重(吨)", Role: RoleWeight},
			{Name: "可售量", Role: RoleStock},
			{Name: "价格(元/吨)", Role: RolePrice},
			{Name: "品牌", Role: RoleBrand},
		},
		Layouts: []Layout{
			{Name: "full", MinCells: 8, Columns: full},
			{
				Name:     "abbreviated",
				MinCells: 7,
				Columns:  lead,
				RowText: []RowPattern{
					{Field: "价格(元/吨)", Pattern: `磅计\s*(\d+(?:,\d{3})*(?:\.\d+)?)`},
				},
			},
		},
		TokenLayouts: []Layout{
			{Name: "tokens-long", MinCells: 6, Columns: []Column{
				{Index: 0, Field: "品名"},
				{Index: 1, Field: "材质"},
				{Index: 2, Field: "规格"},
				{Index: 3, Field: "负差", Replace: []string{"-", "~"}},
				{Index: 4, Field: "支/件"},
				{Index: 5, Field: "支重(吨)"},
			}},
			{Name: "tokens-short", MinCells: 3, Columns: []Column{
				{Index: 0, Field: "品名"},
				{Index: 1, Field: "材质"},
				{Index: 2, Field: "规格"},
			}},
		},
		TokenPriceFloor: 1000,
		HeaderKeywords:  DefaultHeaderKeywords,
		MinTokens:       2,
		MaxRows:         50,
		Patterns: Patterns{
			Tables:       []string{"div.el-table", "div.table-container", "table", ".ant-table", "[class*='table']"},
			Rows:         []string{"tr, .el-table__row, .ant-table-row"},
			FallbackRows: "[class*='row'], [class*='tr']",
			Cells:        []string{"td, .el-table__cell, .ant-table-cell"},
			Pagination:   []string{".el-pagination", ".ant-pagination", ".pagination"},
			NextLinks:    "a, button",
			NextClasses: []string{
				"button.btn-next, .el-pagination .btn-next, .ant-pagination-next, li.next, a.next",
			},
			Active:    []string{".el-pager li.active, .ant-pagination-item-active, .pagination .active"},
			PageLinks: "li.number, a",
			PageItems: "li.number, .ant-pagination-item",
			Login:     "a, button, span, [class*='login']",
		},
	})
}

// Builtin returns a registry holding every built-in site.
func Builtin() *Registry {
	r := NewRegistry()
	r.Put(Haoganghui())
	r.Put(Xinggang91())
	return r
}
