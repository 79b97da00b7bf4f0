package walker

import (
	"context"
	"testing"

	"github.com/Carbocoon/SteelPriceCrawler/view/htmlview"
	"github.com/stretchr/testify/require"
)

func TestNextStrategies(t *testing.T) {
	tests := []struct {
		name     string
		pager    string
		strategy NextStrategy
		wantHref string // "" means no control
	}{
		{
			name:     "text link",
			pager:    `<div class="pagination"><a href="first">首页</a><a href="p2">下一页</a></div>`,
			strategy: TextLink(),
			wantHref: "p2",
		},
		{
			name:     "arrow label",
			pager:    `<div class="pagination"><a href="last">»</a><a href="end">>></a><a href="p2">›</a></div>`,
			strategy: TextLink(),
			wantHref: "p2",
		},
		{
			name:     "hidden container skipped",
			pager:    `<div class="pagination" style="display:none"><a href="x">Next</a></div>`,
			strategy: TextLink(),
		},
		{
			name:     "disabled class",
			pager:    `<div class="pagination"><a class="btn disabled" href="p2">下一页</a></div>`,
			strategy: TextLink(),
		},
		{
			name:     "disabled attribute",
			pager:    `<div class="pagination"><button disabled href="p2">Next</button></div>`,
			strategy: TextLink(),
		},
		{
			name:     "aria disabled",
			pager:    `<a class="next" aria-disabled="true" href="p2">x</a><a class="next" href="p3">y</a>`,
			strategy: ClassPattern(),
			wantHref: "p3",
		},
		{
			name:     "numeric",
			pager:    `<ul><li class="active">3</li></ul><a href="p2">2</a><a href="p4">4</a>`,
			strategy: Numeric(),
			wantHref: "p4",
		},
		{
			name:     "numeric without active",
			pager:    `<a href="p2">2</a>`,
			strategy: Numeric(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			v, err := htmlview.FromHTML(grid(1, 1, tt.pager))
			require.NoError(t, err)

			el, err := tt.strategy.Find(ctx, v, gridSchema(t))
			require.NoError(t, err)
			if tt.wantHref == "" {
				require.Nil(t, el)
				return
			}
			require.NotNil(t, el)
			href, _, err := el.Attribute(ctx, "href")
			require.NoError(t, err)
			require.Equal(t, tt.wantHref, href)
		})
	}
}

func TestDetectTotal(t *testing.T) {
	tests := []struct {
		name  string
		pager string
		want  int
	}{
		{"chinese total", `<div class="pagination">共 12 页</div>`, 12},
		{"english total", `<div class="pagination">Total 7 pages</div>`, 7},
		{"fraction", `<div class="pagination">1 / 4</div>`, 4},
		{"last link href", `<div class="pagination"><a href="/list?page=9">尾页</a></div>`, 9},
		{"last link data", `<div class="pagination"><a data-page="6">Last</a></div>`, 6},
		{"numbers ignored without page items", `<div class="pagination"><a>1</a><a>2</a><a>3</a></div>`, 0},
		{"hidden", `<div class="pagination" style="display:none">共 3 页</div>`, 0},
		{"none", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := htmlview.FromHTML(grid(1, 1, tt.pager))
			require.NoError(t, err)
			got, err := DetectTotal(context.Background(), v, gridSchema(t))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDetectTotal_PageItems(t *testing.T) {
	s := gridSchema(t)
	s.Patterns.PageItems = "li.number"
	v, err := htmlview.FromHTML(grid(1, 1, `<div class="pagination"><ul><li class="number">1</li><li class="number">2</li><li class="number">15</li><li>...</li></ul></div>`))
	require.NoError(t, err)
	got, err := DetectTotal(context.Background(), v, s)
	require.NoError(t, err)
	require.Equal(t, 15, got)
}

func TestLoginRequired(t *testing.T) {
	s := gridSchema(t)
	ctx := context.Background()

	v, err := htmlview.FromHTML(`<body><a href="/login">请登录</a></body>`)
	require.NoError(t, err)
	ok, err := LoginRequired(ctx, v, s)
	require.NoError(t, err)
	require.True(t, ok)

	v, err = htmlview.FromHTML(`<body><a style="display:none">登录</a><a>退出</a></body>`)
	require.NoError(t, err)
	ok, err = LoginRequired(ctx, v, s)
	require.NoError(t, err)
	require.False(t, ok)
}
